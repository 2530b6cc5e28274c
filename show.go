package main

import (
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"github.com/spf13/cobra"

	"github.com/bob-anderson-ok/lcviz/session"
)

var showCmd = &cobra.Command{
	Use:   "show <parameter-file>",
	Short: "Open every viewer in its own window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRun(args[0])
		if err != nil {
			return err
		}
		defer r.close()

		if err := r.s.RenderAll(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
		showViewers(r)
		return nil
	},
}

// showViewers puts each rendered viewer image in a window and blocks until
// the first (time) window is closed.
func showViewers(r *run) {
	size := r.cfg.WindowSizePixels
	if r.params.WindowSizePixels > 0 {
		size = r.params.WindowSizePixels
	}
	title := r.params.Title
	if title == "" {
		title = "lcviz " + version
	}

	myApp := app.NewWithID("com.gmail.ok.anderson.bob.lcviz")
	var first fyne.Window
	for _, v := range r.s.Viewers().All() {
		ps, ok := v.Surface().(*session.PlotSurface)
		if !ok || ps.Image() == nil {
			continue
		}
		plotImg := canvas.NewImageFromImage(ps.Image())
		plotImg.FillMode = canvas.ImageFillContain
		plotImg.SetMinSize(fyne.NewSize(float32(ps.WidthPx), float32(ps.HeightPx)))

		w := myApp.NewWindow(fmt.Sprintf("%s - %s", title, v.Reference))
		w.SetContent(container.NewCenter(plotImg))
		w.Resize(fyne.NewSize(float32(size), float32(size)*float32(ps.HeightPx/ps.WidthPx)+50))
		if first == nil {
			first = w
			continue
		}
		w.Show()
	}
	if first == nil {
		fmt.Println("Nothing to show: no viewer has any data.")
		return
	}
	first.ShowAndRun()
}

func init() {
	rootCmd.AddCommand(showCmd)
}
