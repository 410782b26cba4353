package translation

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"

	"github.com/verte-zerg/steno/internal/steno"
)

// Macro rewrites history in response to a stroke. arg is the text after
// "=name:" in the dictionary value.
type Macro func(t *Translator, stroke steno.Stroke, arg string) error

// Built-in macro names.
const (
	MacroUndo                = "undo"
	MacroRetroToggleAsterisk = "retrospective_toggle_asterisk"
	MacroRetroDeleteSpace    = "retrospective_delete_space"
	MacroRetroInsertSpace    = "retrospective_insert_space"
	MacroRepeatLastStroke    = "repeat_last_stroke"
	asteriskKey              = "*"
	retroJoin                = "{^~|^}"
	backStringDarwin         = "{#Alt_L(BackSpace)}{^}"
	backStringOther          = "{#Control_L(BackSpace)}{^}"
)

var macroAliases = map[string]string{
	"{*}":  MacroRetroToggleAsterisk,
	"{*!}": MacroRetroDeleteSpace,
	"{*?}": MacroRetroInsertSpace,
	"{*+}": MacroRepeatLastStroke,
}

var macroRx = regexp.MustCompile(`^=\w+(:|$)`)

func defaultMacros() map[string]Macro {
	return map[string]Macro{
		MacroUndo:                undoMacro,
		MacroRetroToggleAsterisk: toggleAsterisk,
		MacroRetroDeleteSpace:    deleteSpace,
		MacroRetroInsertSpace:    insertSpace,
		MacroRepeatLastStroke:    repeatLastStroke,
	}
}

// mappingToMacro recognizes macro values. An unmapped undo stroke is the
// undo macro; "=name" values only count when name is an identifier, so
// "= 0" stays text.
func mappingToMacro(mapping string, mapped bool, stroke steno.Stroke) (name, arg string, ok bool) {
	if !mapped {
		if stroke.IsCorrection() {
			return MacroUndo, "", true
		}
		return "", "", false
	}
	if alias, found := macroAliases[mapping]; found {
		return alias, "", true
	}
	if !macroRx.MatchString(mapping) {
		return "", "", false
	}
	name, arg, _ = strings.Cut(mapping[1:], ":")
	return name, arg, true
}

func noArgument(name, arg string) error {
	if arg != "" {
		return fmt.Errorf("%w: %s takes no argument, got %q", ErrBadMacroArgument, name, arg)
	}
	return nil
}

// BackString is the translation sent when undo runs out of history: it
// deletes the previous word through the keyboard.
func BackString() string {
	if runtime.GOOS == "darwin" {
		return backStringDarwin
	}
	return backStringOther
}

func undoMacro(t *Translator, stroke steno.Stroke, arg string) error {
	if err := noArgument(MacroUndo, arg); err != nil {
		return err
	}
	for len(t.state.Translations) > 0 {
		last := t.state.Translations[len(t.state.Translations)-1]
		if err := t.UntranslateTranslation(last); err != nil {
			return err
		}
		if last.HasUndo() {
			return nil
		}
	}
	t.Flush([]*Translation{New([]steno.Stroke{stroke}, BackString())})
	return nil
}

func toggleAsterisk(t *Translator, _ steno.Stroke, arg string) error {
	if err := noArgument(MacroRetroToggleAsterisk, arg); err != nil {
		return err
	}
	history := t.state.Translations
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	if err := t.UntranslateTranslation(last); err != nil {
		return err
	}
	toggled, err := last.Strokes[len(last.Strokes)-1].Toggled(asteriskKey)
	if err != nil {
		return err
	}
	return t.TranslateStroke(toggled)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// deleteSpace joins the two newest translations. Untranslated digits are
// glued; any other untranslated stroke leaves history alone.
func deleteSpace(t *Translator, stroke steno.Stroke, arg string) error {
	if err := noArgument(MacroRetroDeleteSpace, arg); err != nil {
		return err
	}
	history := t.state.Translations
	if len(history) < 2 {
		return nil
	}
	replaced := append([]*Translation(nil), history[len(history)-2:]...)
	if replaced[1].IsRetrospectiveCommand {
		return nil
	}
	parts := make([]string, 0, len(replaced))
	for _, tr := range replaced {
		switch {
		case tr.HasEnglish:
			parts = append(parts, tr.English)
		case len(tr.RTFCRE) == 1 && isDigits(tr.RTFCRE[0]):
			parts = append(parts, "{&"+tr.RTFCRE[0]+"}")
		}
	}
	if len(parts) != len(replaced) {
		return nil
	}
	tr := New([]steno.Stroke{stroke}, strings.Join(parts, retroJoin))
	tr.Replaced = replaced
	tr.IsRetrospectiveCommand = true
	return t.TranslateTranslation(tr)
}

// insertSpace splits the newest multi-stroke match back into the entries it
// replaced plus the lookup of its last stroke.
func insertSpace(t *Translator, stroke steno.Stroke, arg string) error {
	if err := noArgument(MacroRetroInsertSpace, arg); err != nil {
		return err
	}
	history := t.state.Translations
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	if last.IsRetrospectiveCommand || len(last.Replaced) == 0 {
		return nil
	}
	parts := make([]string, 0, len(last.Replaced)+1)
	for _, tr := range last.Replaced {
		if tr.HasEnglish && tr.English != "" {
			parts = append(parts, tr.English)
			continue
		}
		parts = append(parts, strings.Join(tr.RTFCRE, steno.StrokeDelimiter))
	}
	lastStroke := last.Strokes[len(last.Strokes)-1]
	if mapping, ok := t.Lookup([]steno.Stroke{lastStroke}, lastStroke.System().SuffixKeys); ok && mapping != "" {
		parts = append(parts, mapping)
	} else {
		parts = append(parts, lastStroke.RTFCRE())
	}
	tr := New([]steno.Stroke{stroke}, strings.Join(parts, " "))
	tr.Replaced = []*Translation{last}
	tr.IsRetrospectiveCommand = true
	return t.TranslateTranslation(tr)
}

func repeatLastStroke(t *Translator, _ steno.Stroke, arg string) error {
	if err := noArgument(MacroRepeatLastStroke, arg); err != nil {
		return err
	}
	history := t.state.Translations
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	return t.TranslateStroke(last.Strokes[len(last.Strokes)-1])
}
