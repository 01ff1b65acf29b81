package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	calorieanalyzer "github.com/menta2k/calorie-analyzer"
	"github.com/menta2k/calorie-analyzer/internal/cli"
)

func main() {
	root := cli.NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(calorieanalyzer.Version),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
