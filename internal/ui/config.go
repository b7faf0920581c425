package ui

// Config controls the windowed frontend: the title bar text, integer pixel
// scale applied to the 160x144 DMG framebuffer, and whether the oto audio
// sink is started at all (useful for headless or CI runs under ebiten's
// software driver, where no audio device may exist).
type Config struct {
	Title      string
	Scale      int
	AudioMuted bool
}

// Defaults returns the same title and scale that cmd/dmgcore's run
// subcommand uses as its flag defaults.
func Defaults() Config {
	return Config{
		Title: "GameBoyEmulator",
		Scale: 3,
	}
}
