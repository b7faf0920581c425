package main

import (
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ui"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/vm"
)

func newRunCmd() *cobra.Command {
	var (
		bootROM string
		scale   int
		title   string
		trace   bool
		mbc     string
		mute    bool
		noSave  bool
	)

	cmd := &cobra.Command{
		Use:   "run <rom>",
		Short: "Play a ROM in a window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			romPath := args[0]

			override, err := vm.ParseMBCOverride(mbc)
			if err != nil {
				return err
			}

			app := ui.NewApp(ui.Config{Title: title, Scale: scale, AudioMuted: mute})
			machine := vm.New(vm.Config{Trace: trace, MBCOverride: override}, app)
			app.Attach(machine)

			if bootROM != "" {
				data, err := os.ReadFile(bootROM)
				if err != nil {
					return fmt.Errorf("read boot rom: %w", err)
				}
				machine.SetBootROM(data)
			}
			if err := machine.LoadROMFromFile(romPath); err != nil {
				return fmt.Errorf("load rom: %w", err)
			}
			if !noSave {
				if data, err := os.ReadFile(romPath + ".sav"); err == nil {
					machine.LoadBattery(data)
				}
			}

			ebiten.SetWindowSize(160*scale, 144*scale)
			ebiten.SetWindowTitle(ui.WindowTitle(ui.Config{Title: title}, romPath))

			runErr := ebiten.RunGame(app)

			if !noSave && machine.IsSRAMDirty() {
				if data, ok := machine.SaveBattery(); ok {
					_ = os.WriteFile(romPath+".sav", data, 0o644)
				}
			}
			app.Close()
			return runErr
		},
	}

	cmd.Flags().StringVar(&bootROM, "bootrom", "", "optional DMG boot ROM")
	cmd.Flags().IntVar(&scale, "scale", 3, "window scale")
	cmd.Flags().StringVar(&title, "title", "GameBoyEmulator", "window title")
	cmd.Flags().BoolVar(&trace, "trace", false, "log every CPU step")
	cmd.Flags().StringVar(&mbc, "mbc", "", "force a cartridge mapper (romonly, mbc1, mbc2, mbc3, mbc5) instead of trusting the header")
	cmd.Flags().BoolVar(&mute, "mute", false, "disable audio output")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "don't load or persist battery RAM (.sav)")
	return cmd
}
