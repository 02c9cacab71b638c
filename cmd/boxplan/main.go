package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/eugenenazirov/boxplan/internal/allocation"
	"github.com/eugenenazirov/boxplan/internal/calculator"
	"github.com/eugenenazirov/boxplan/internal/carton"
	"github.com/eugenenazirov/boxplan/internal/channel"
	"github.com/eugenenazirov/boxplan/internal/report"
	"github.com/eugenenazirov/boxplan/internal/sheet"
	"github.com/eugenenazirov/boxplan/internal/storage"
)

const (
	formatTable    = "table"
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

func main() {
	kingpin.FatalIfError(run(os.Args[1:], os.Stdout), "boxplan")
}

type planFlags struct {
	channel  string
	input    string
	length   float64
	width    float64
	height   float64
	tare     float64
	price    float64
	format   string
	output   string
	minQty   int
	maxQty   int
	saveTo   string
	channels string
}

func run(args []string, stdout io.Writer) error {
	app := kingpin.New("boxplan", "Plan SKU quantities for a single shipping carton and estimate its freight cost")
	app.UsageWriter(stdout)
	channelsFile := app.Flag("channels", "Path to a YAML channel rule table").ExistingFile()

	var pf planFlags
	planCmd := app.Command("plan", "Compute a carton plan from a CSV or XLSX sheet")
	planCmd.Arg("sheet", "Input sheet (.csv or .xlsx)").Required().ExistingFileVar(&pf.input)
	planCmd.Flag("channel", "Shipping channel name or alias").Short('c').Required().StringVar(&pf.channel)
	planCmd.Flag("length", "Box length in cm").Required().Float64Var(&pf.length)
	planCmd.Flag("width", "Box width in cm").Required().Float64Var(&pf.width)
	planCmd.Flag("height", "Box height in cm").Required().Float64Var(&pf.height)
	planCmd.Flag("tare", "Empty box weight in kg").Default("0").Float64Var(&pf.tare)
	planCmd.Flag("price", "Freight price per chargeable kg").Required().Float64Var(&pf.price)
	planCmd.Flag("format", "Output format").Short('f').Default(formatTable).EnumVar(&pf.format, formatTable, formatMarkdown, formatJSON)
	planCmd.Flag("out", "Also write the plan to this .xlsx or .csv file").Short('o').StringVar(&pf.output)
	planCmd.Flag("min", "Minimum quantity per accepted SKU").Default(strconv.Itoa(allocation.DefaultBand().Min)).IntVar(&pf.minQty)
	planCmd.Flag("max", "Maximum quantity per SKU").Default(strconv.Itoa(allocation.DefaultBand().Max)).IntVar(&pf.maxQty)
	planCmd.Flag("save", "Store the plan in this SQLite database").StringVar(&pf.saveTo)

	templateCmd := app.Command("template", "Write an XLSX input template")
	templatePath := templateCmd.Arg("path", "Destination file").Default("boxplan-template.xlsx").String()

	channelsCmd := app.Command("channels", "List the shipping channel rules")

	historyCmd := app.Command("history", "List plans stored in a SQLite database")
	historyDB := historyCmd.Arg("db", "SQLite database path").Required().ExistingFile()
	historyLimit := historyCmd.Flag("limit", "Number of plans to show").Default("20").Int()

	command, err := app.Parse(args)
	if err != nil {
		return err
	}
	pf.channels = *channelsFile

	switch command {
	case planCmd.FullCommand():
		return runPlan(pf, stdout)
	case templateCmd.FullCommand():
		return runTemplate(*templatePath, stdout)
	case channelsCmd.FullCommand():
		rules, err := loadChannels(*channelsFile)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, renderChannels(rules))
		return err
	case historyCmd.FullCommand():
		return runHistory(context.Background(), *historyDB, *historyLimit, stdout)
	}
	return fmt.Errorf("unknown command %q", command)
}

func runPlan(pf planFlags, stdout io.Writer) error {
	rules, err := loadChannels(pf.channels)
	if err != nil {
		return err
	}

	band := allocation.Band{Min: pf.minQty, Max: pf.maxQty}
	if err := band.Validate(); err != nil {
		return fmt.Errorf("quantity band %d..%d: %w", band.Min, band.Max, err)
	}

	f, err := os.Open(pf.input)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := sheet.Parse(pf.input, f)
	if err != nil {
		return fmt.Errorf("read %s: %w", pf.input, err)
	}

	calc := calculator.New(rules, calculator.WithBand(band))
	plan, err := calc.Compute(calculator.Request{
		Channel: pf.channel,
		Rows:    rows,
		Box: carton.Box{
			Length:     pf.length,
			Width:      pf.width,
			Height:     pf.height,
			TareWeight: pf.tare,
		},
		PricePerKg: pf.price,
	})
	if err != nil {
		return err
	}

	if err := printPlan(stdout, plan, pf.format); err != nil {
		return err
	}
	if pf.output != "" {
		if err := writePlanFile(pf.output, plan); err != nil {
			return err
		}
	}
	if pf.saveTo != "" {
		id, err := savePlan(context.Background(), pf.saveTo, plan)
		if err != nil {
			return err
		}
		if pf.format != formatJSON {
			_, err = fmt.Fprintf(stdout, "plan saved as %s\n", id)
		}
		return err
	}
	return nil
}

func savePlan(ctx context.Context, path string, plan calculator.Plan) (string, error) {
	store, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return "", err
	}
	defer store.Close()

	stored := storage.NewStoredPlan(storage.SourceCLI, plan, time.Now())
	if err := store.SavePlan(ctx, stored); err != nil {
		return "", err
	}
	return stored.ID, nil
}

func runHistory(ctx context.Context, path string, limit int, stdout io.Writer) error {
	store, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	plans, err := store.ListPlans(ctx, limit)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []string{
			p.ID,
			p.CreatedAt.Local().Format(time.DateTime),
			p.Source,
			p.Plan.Channel.Name,
			fmt.Sprintf("%d/%d", p.Plan.Accepted(), len(p.Plan.Records)),
			strconv.FormatFloat(p.Plan.Summary.TotalCost, 'f', 2, 64),
		})
	}
	_, err = fmt.Fprintln(stdout, table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Created", "Source", "Channel", "Accepted", "Total cost").
		Rows(rows...).
		Render())
	return err
}

func printPlan(w io.Writer, plan calculator.Plan, format string) error {
	switch format {
	case formatMarkdown:
		_, err := io.WriteString(w, report.Markdown(plan))
		return err
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	default:
		_, err := io.WriteString(w, report.Terminal(plan))
		return err
	}
}

func writePlanFile(path string, plan calculator.Plan) (err error) {
	write := sheet.WriteXLSX
	switch strings.ToLower(filepath.Ext(path)) {
	case sheet.ExtXLSX:
	case sheet.ExtCSV:
		write = sheet.WriteCSV
	default:
		return fmt.Errorf("%w: %q", sheet.ErrUnsupportedFormat, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return write(f, plan)
}

func runTemplate(path string, stdout io.Writer) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	if err := sheet.WriteTemplate(f); err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout, "template written to %s\n", path)
	return err
}

func loadChannels(path string) (channel.Table, error) {
	if path == "" {
		return channel.DefaultTable(), nil
	}
	return channel.LoadTable(path)
}

func renderChannels(rules channel.Table) string {
	rows := make([][]string, 0, len(rules.Names()))
	for _, rule := range rules.Rules() {
		rows = append(rows, []string{
			rule.Name,
			strings.Join(rule.Aliases, ", "),
			strconv.FormatFloat(rule.MaxWeight, 'f', -1, 64),
			strconv.FormatFloat(rule.MaxCircumference, 'f', -1, 64),
			strconv.FormatFloat(rule.VolWeightDivisor, 'f', -1, 64),
		})
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Channel", "Aliases", "Max weight (kg)", "Max girth (cm)", "Volumetric divisor").
		Rows(rows...).
		Render()
}
