package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/labstack/gommon/color"
	"github.com/soyunomas/dupescan/internal/engine"
)

// Print muestra los grupos de duplicados en formato legible.
func Print(w io.Writer, res *engine.Result, opts Options) error {
	c := color.New()
	if opts.Color {
		c.Enable()
	} else {
		c.Disable()
	}

	views := prepare(res.Groups, opts)
	s := totals(views, res.Stats)

	var b strings.Builder
	if res.Interrupted {
		fmt.Fprintln(&b, c.Yellow("⚠️  Escaneo interrumpido: resultados parciales."))
	}

	if len(views) == 0 {
		fmt.Fprintln(&b, c.Green("✅ ¡Limpio! No se encontraron duplicados."))
		_, err := io.WriteString(w, b.String())
		return err
	}

	label := "grupos de duplicados"
	if len(views) == 1 {
		label = "grupo de duplicados"
	}
	fmt.Fprintf(&b, "\n🔴 %s %s %s (%s)\n\n",
		c.Bold("Encontrados"),
		c.Bold(c.Yellow(len(views))),
		label,
		c.Bold(c.Red(humanize.Bytes(s.TotalWastedSpace))))

	for idx, v := range views {
		fmt.Fprintf(&b, "%s %s %s %s %s\n",
			c.Bold(c.Cyan(fmt.Sprintf("#%d", idx+1))),
			c.Grey("·"),
			c.White(humanize.Bytes(uint64(v.Size))),
			c.Grey("×"),
			c.White(fmt.Sprintf("%d archivos", len(v.Files))))

		for i, f := range v.Files {
			prefix := "  │"
			switch {
			case i == 0:
				prefix = "  ├"
			case i == len(v.Files)-1:
				prefix = "  └"
			}
			line := fmt.Sprintf("%s %s", c.Grey(prefix), formatPath(f.Path, opts.Hyperlinks))
			if v.HardLinks[f.Path] {
				line += " " + c.Grey("🔗 [hardlink]")
			}
			fmt.Fprintln(&b, line)
		}
		fmt.Fprintf(&b, "    %s %s\n\n", c.Grey("desperdiciado:"), c.Red(humanize.Bytes(v.wasted())))
	}

	fmt.Fprintln(&b, "------------------------------------------------")
	fmt.Fprintf(&b, "🏁 Archivos escaneados: %s | grupos por tamaño: %s\n",
		humanize.Comma(int64(s.TotalFilesScanned)), humanize.Comma(int64(s.TotalSizeGroups)))
	fmt.Fprintf(&b, "💾 Espacio recuperable: %s\n", humanize.Bytes(s.TotalWastedSpace))

	_, err := io.WriteString(w, b.String())
	return err
}

// formatPath envuelve la ruta en un hipervínculo OSC 8 si la terminal lo soporta.
func formatPath(path string, hyperlink bool) string {
	if !hyperlink {
		return path
	}
	return fmt.Sprintf("\x1b]8;;file://%s\x07%s\x1b]8;;\x07", path, path)
}
