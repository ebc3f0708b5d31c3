package main

import (
	"github.com/YuminosukeSato/gbdata/booster"
	"github.com/schollz/progressbar/v3"
)

// progressCallback advances a terminal progress bar once per round.
type progressCallback struct {
	description string
	bar         *progressbar.ProgressBar
}

func newProgressCallback(description string) *progressCallback {
	return &progressCallback{description: description}
}

func (p *progressCallback) Init(env *booster.CallbackEnv) error {
	p.bar = progressbar.Default(int64(env.NumRounds), p.description)
	return nil
}

func (p *progressCallback) BeforeIteration(*booster.CallbackEnv) error { return nil }

func (p *progressCallback) AfterIteration(*booster.CallbackEnv) error {
	return p.bar.Add(1)
}

func (p *progressCallback) Finalize(*booster.CallbackEnv) error {
	return p.bar.Finish()
}
