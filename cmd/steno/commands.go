package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/steno/internal/config"
	"github.com/verte-zerg/steno/internal/engine"
	"github.com/verte-zerg/steno/internal/keycombo"
	"github.com/verte-zerg/steno/internal/model"
	"github.com/verte-zerg/steno/internal/stats"
	"github.com/verte-zerg/steno/internal/statsui"
	"github.com/verte-zerg/steno/internal/steno"
	"github.com/verte-zerg/steno/internal/store"
	"github.com/verte-zerg/steno/internal/system"
)

const (
	defaultCurveWindow = 20
	defaultWidth       = 80
	tapeStrokeWidth    = 16
)

var (
	translateTape bool

	lookupStrokes bool
	lookupSimilar int

	systemKeymap string

	statsSystem      string
	statsSince       string
	statsLast        int
	statsCurveWindow int
	statsWords       string
	statsUI          bool
)

// textSink keeps the text the engine would have typed.
type textSink struct {
	mu     sync.Mutex
	text   []rune
	combos []string
}

func (s *textSink) SendBackspaces(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = s.text[:max(0, len(s.text)-n)]
}

func (s *textSink) SendString(str string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = append(s.text, []rune(str)...)
}

func (s *textSink) SendKeyCombination(combo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.combos = append(s.combos, combo)
}

func (s *textSink) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.text)
}

// tapePrinter writes one line per stroke with the edit it produced.
type tapePrinter struct {
	w          io.Writer
	width      int
	backspaces int
	text       strings.Builder
	combos     []string
}

func (p *tapePrinter) handle(ev engine.Event) {
	switch ev.Kind {
	case engine.EventSendBackspaces:
		p.backspaces += ev.Count
	case engine.EventSendString:
		p.text.WriteString(ev.Text)
	case engine.EventSendKeyCombination:
		p.combos = append(p.combos, ev.Text)
	case engine.EventError:
		fmt.Fprintf(p.w, "%s error: %v\n", runewidth.FillRight(ev.Stroke, tapeStrokeWidth), ev.Err)
	case engine.EventStroked:
		fmt.Fprintln(p.w, p.line(ev.Stroke))
		p.backspaces = 0
		p.text.Reset()
		p.combos = nil
	}
}

func (p *tapePrinter) line(stroke string) string {
	var parts []string
	if p.backspaces > 0 {
		parts = append(parts, fmt.Sprintf("-%d", p.backspaces))
	}
	if p.text.Len() > 0 {
		parts = append(parts, fmt.Sprintf("%q", p.text.String()))
	}
	for _, c := range p.combos {
		parts = append(parts, "{#"+c+"}")
	}
	out := runewidth.Truncate(strings.Join(parts, " "), max(1, p.width-tapeStrokeWidth-1), "…")
	return runewidth.FillRight(runewidth.Truncate(stroke, tapeStrokeWidth, "…"), tapeStrokeWidth) + " " + out
}

func terminalWidth(f *os.File) int {
	if !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return defaultWidth
	}
	return width
}

func newTranslateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate [STROKE/STROKE ...]",
		Short: "Translate strokes and print the resulting text",
		Long:  "Translate strokes given as arguments, or read from stdin when there are none. Strokes are separated by '/' or whitespace.",
		RunE:  runTranslateCmd,
	}
	cmd.Flags().BoolVar(&translateTape, "tape", false, "print a paper tape line per stroke")
	return cmd
}

func runTranslateCmd(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	strokes, err := readStrokes(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	ctx := context.Background()
	sink := &textSink{}
	eng, err := startEngine(ctx, s.engine, s.logger, engine.WithSink(sink))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if translateTape {
		printer := &tapePrinter{w: out, width: terminalWidth(os.Stdout)}
		id := eng.Subscribe(printer.handle)
		defer eng.Unsubscribe(id)
	}
	for _, stroke := range strokes {
		eng.StrokeNotation(stroke)
	}
	if err := eng.Call(ctx, func() error { return nil }); err != nil {
		return fmt.Errorf("failed to translate: %w", err)
	}
	if err := eng.stop(); err != nil {
		return fmt.Errorf("engine stopped with error: %w", err)
	}
	if _, err := fmt.Fprintln(out, sink.Text()); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func readStrokes(args []string, in io.Reader) ([]string, error) {
	split := func(s string) []string {
		return strings.FieldsFunc(s, func(r rune) bool {
			return r == '/' || r == ' ' || r == '\t'
		})
	}
	var strokes []string
	if len(args) > 0 {
		for _, arg := range args {
			strokes = append(strokes, split(arg)...)
		}
		return strokes, nil
	}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		strokes = append(strokes, split(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read strokes: %w", err)
	}
	return strokes, nil
}

func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup TEXT...",
		Short: "Find the strokes that write a text",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLookupCmd,
	}
	cmd.Flags().BoolVar(&lookupStrokes, "strokes", false, "arguments are strokes; print their translation")
	cmd.Flags().IntVar(&lookupSimilar, "similar", 0, "also list up to N similar dictionary entries")
	return cmd
}

func runLookupCmd(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	eng, err := startEngine(context.Background(), s.engine, s.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.stop(); err != nil {
			logErrf("engine stopped with error: %v\n", err)
		}
	}()
	out := cmd.OutOrStdout()

	if lookupStrokes {
		sys := eng.System()
		for _, arg := range args {
			strokes, err := steno.NormalizeSteno(sys, arg)
			if err != nil {
				return err
			}
			key := strings.Join(strokes, "/")
			text, ok := eng.Lookup(strokes)
			if !ok {
				fmt.Fprintf(out, "%s: not found\n", key)
				continue
			}
			fmt.Fprintf(out, "%s: %s\n", key, text)
		}
		return nil
	}

	text := strings.Join(args, " ")
	suggestions := eng.Suggestions(text)
	if len(suggestions) == 0 {
		fmt.Fprintf(out, "%s: not found\n", text)
	}
	for _, sg := range suggestions {
		fmt.Fprintf(out, "%s: %s\n", sg.Text, joinOutlines(sg.Strokes))
	}
	if lookupSimilar > 0 {
		for _, sg := range eng.SimilarSuggestions(text, lookupSimilar) {
			fmt.Fprintf(out, "~ %s (%.2f): %s\n", sg.Text, sg.Score, joinOutlines(sg.Strokes))
		}
	}
	return nil
}

func joinOutlines(outlines [][]string) string {
	parts := make([]string, len(outlines))
	for i, o := range outlines {
		parts[i] = strings.Join(o, "/")
	}
	return strings.Join(parts, ", ")
}

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize STENO...",
		Short: "Print strokes in canonical steno notation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			sys, err := system.Resolve(s.engine.SystemName, s.engine.SystemFile)
			if err != nil {
				return fmt.Errorf("failed to load system: %w", err)
			}
			for _, arg := range args {
				strokes, err := steno.NormalizeSteno(sys, arg)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(strokes, "/"))
			}
			return nil
		},
	}
}

func newComboCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "combo COMBO",
		Short: "Parse a key combination into key events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := keycombo.Parse(args[0], keycombo.KnownKey)
			if err != nil {
				return err
			}
			parts := make([]string, len(events))
			for i, ev := range events {
				parts[i] = ev.String()
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(parts, " "))
			return nil
		},
	}
}

func newSystemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "system",
		Short: "Describe the configured steno system",
		Args:  cobra.NoArgs,
		RunE:  runSystemCmd,
	}
	cmd.Flags().StringVar(&systemKeymap, "keymap", "", "print the key assignment of a machine keymap")
	return cmd
}

func runSystemCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	sys, err := system.Resolve(s.engine.SystemName, s.engine.SystemFile)
	if err != nil {
		return fmt.Errorf("failed to load system: %w", err)
	}
	out := cmd.OutOrStdout()
	if systemKeymap != "" {
		mapping, ok := sys.Keymap(systemKeymap)
		if !ok {
			return fmt.Errorf("system %q has no %q keymap", sys.Name, systemKeymap)
		}
		machineKeys := make([]string, 0, len(mapping))
		for k := range mapping {
			machineKeys = append(machineKeys, k)
		}
		sort.Strings(machineKeys)
		for _, k := range machineKeys {
			fmt.Fprintf(out, "%s\t%s\n", k, mapping[k])
		}
		return nil
	}
	machines := make([]string, 0, len(sys.Keymaps))
	for name := range sys.Keymaps {
		machines = append(machines, name)
	}
	sort.Strings(machines)
	fmt.Fprintf(out, "Name: %s\n", sys.Name)
	fmt.Fprintf(out, "Keys: %s\n", strings.Join(sys.Keys, " "))
	fmt.Fprintf(out, "Implicit hyphen keys: %s\n", strings.Join(sys.ImplicitHyphenKeys, " "))
	fmt.Fprintf(out, "Suffix keys: %s\n", strings.Join(sys.SuffixKeys, " "))
	fmt.Fprintf(out, "Number key: %s\n", sys.NumberKey)
	fmt.Fprintf(out, "Undo stroke: %s\n", sys.UndoStroke)
	fmt.Fprintf(out, "Orthography rules: %d, words: %d\n", len(sys.OrthographyRules), len(sys.OrthographyWords))
	fmt.Fprintf(out, "Keymaps: %s\n", strings.Join(machines, ", "))
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show trainer stats",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSystem, "system-filter", "", "only sessions drilled with this steno system")
	cmd.Flags().StringVar(&statsSince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&statsLast, "last", 0, "limit to last N sessions")
	cmd.Flags().IntVar(&statsCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().StringVar(&statsWords, "word", "", "comma separated words for per-word curves")
	cmd.Flags().BoolVar(&statsUI, "ui", false, "browse stats interactively")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	var sinceTime *time.Time
	if statsSince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", statsSince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if statsCurveWindow < 1 {
		return fmt.Errorf("--curve-window must be >= 1")
	}

	cfg := model.StatsConfig{
		System:      statsSystem,
		Since:       sinceTime,
		Last:        statsLast,
		CurveWindow: statsCurveWindow,
		Words:       statsWords,
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			s.logger.Warn("failed to close db", "err", cerr)
		}
	}()

	if statsUI {
		program := tea.NewProgram(statsui.NewModel(st, cfg), tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("failed to run stats TUI: %w", err)
		}
		return nil
	}
	report, err := stats.BuildReport(context.Background(), st, cfg)
	if err != nil {
		return err
	}
	return report.Render(cmd.OutOrStdout(), cfg.CurveWindow, terminalWidth(os.Stdout))
}
