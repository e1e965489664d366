package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/colonyops/erpsync/internal/core/styles"
	"github.com/colonyops/erpsync/pkg/iojson"
)

// errAborted is returned when the user cancels an interactive prompt.
var errAborted = errors.New("aborted")

// payloadInput gathers a JSON object from -f, --set pairs alone, piped stdin,
// or an interactive form, in that order of preference. --set pairs are
// always applied last.
type payloadInput struct {
	reader iojson.FileReader[map[string]any]
	sets   []string
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (in *payloadInput) read(endpoint string) (map[string]any, error) {
	var payload map[string]any

	switch {
	case in.reader.HasFile():
		v, err := in.reader.Read()
		if err != nil {
			return nil, err
		}
		payload = v
	case len(in.sets) > 0:
		payload = map[string]any{}
	case !stdinIsTerminal():
		v, err := in.reader.Read()
		if err != nil {
			return nil, err
		}
		payload = v
	default:
		v, err := promptPayload(endpoint)
		if err != nil {
			return nil, err
		}
		payload = v
	}

	if payload == nil {
		payload = map[string]any{}
	}
	if err := applySets(payload, in.sets); err != nil {
		return nil, err
	}
	return payload, nil
}

// applySets overlays field=value pairs. Values that parse as JSON keep their
// type, anything else is a string.
func applySets(payload map[string]any, sets []string) error {
	for _, s := range sets {
		field, raw, ok := strings.Cut(s, "=")
		if !ok || field == "" {
			return fmt.Errorf("invalid --set %q (expected field=value)", s)
		}

		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		payload[field] = v
	}
	return nil
}

func promptPayload(endpoint string) (map[string]any, error) {
	var raw string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Payload").
				Description("JSON object sent to " + endpoint).
				Validate(validateObject).
				Value(&raw),
		),
	).WithTheme(styles.FormTheme()).Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, errAborted
		}
		return nil, fmt.Errorf("form: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	return payload, nil
}

func validateObject(s string) error {
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return fmt.Errorf("must be a JSON object")
	}
	return nil
}
