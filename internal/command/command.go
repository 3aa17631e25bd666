// Package command parses and executes the /command surface. A command
// line is parsed once into a typed value; dispatch either fully applies
// and persists a mutation, or leaves the session untouched and returns a
// usage message.
package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/convohub/convo-gateway/internal/session"
	"github.com/convohub/convo-gateway/internal/store"
	"github.com/convohub/convo-gateway/internal/validate"
)

// Prefix marks a message as a command.
const Prefix = "/"

// Command is one parsed command. The closed set of implementations lives
// in this package.
type Command interface {
	isCommand()
}

type (
	// Help lists the available commands.
	Help struct{}
	// Reset clears the conversation history.
	Reset struct{}
	// Settings shows the current session parameters.
	Settings struct{}
	// SetProvider switches the generation provider.
	SetProvider struct{ Name string }
	// SetModel overrides the provider's model.
	SetModel struct{ Name string }
	// SetTemperature adjusts sampling temperature.
	SetTemperature struct{ Value float64 }
	// SetSystemPrompt replaces the system prompt.
	SetSystemPrompt struct{ Prompt string }
	// SetMemory adjusts how many exchanges are kept.
	SetMemory struct{ Size int }
	// SetMaxTokens caps the completion length.
	SetMaxTokens struct{ Limit int }
	// SetTTS toggles speech synthesis.
	SetTTS struct{ Enabled bool }
	// SetVoice selects the synthesis voice.
	SetVoice struct{ ID string }
	// SaveDefaults persists the current params as the user's defaults.
	SaveDefaults struct{}
	// Status shows session state and history length.
	Status struct{}
	// Unknown is any unrecognized verb.
	Unknown struct{ Verb string }
)

func (Help) isCommand()            {}
func (Reset) isCommand()           {}
func (Settings) isCommand()        {}
func (SetProvider) isCommand()     {}
func (SetModel) isCommand()        {}
func (SetTemperature) isCommand()  {}
func (SetSystemPrompt) isCommand() {}
func (SetMemory) isCommand()       {}
func (SetMaxTokens) isCommand()    {}
func (SetTTS) isCommand()          {}
func (SetVoice) isCommand()        {}
func (SaveDefaults) isCommand()    {}
func (Status) isCommand()          {}
func (Unknown) isCommand()         {}

// Dispatcher executes commands against a session and persists the
// result.
type Dispatcher struct {
	store     *store.Store
	providers []string
	voices    []string
}

// NewDispatcher creates a dispatcher. providers is the closed set of
// provider names accepted by /provider; voices the aliases accepted by
// /voiceid.
func NewDispatcher(st *store.Store, providers, voices []string) *Dispatcher {
	sort.Strings(providers)
	sort.Strings(voices)
	return &Dispatcher{store: st, providers: providers, voices: voices}
}

// Parse turns a command line into a typed command. A validation error
// means the verb was recognized but its argument is invalid; the error
// message doubles as the usage string.
func (d *Dispatcher) Parse(line string) (Command, error) {
	line = strings.TrimSpace(strings.TrimPrefix(line, Prefix))
	verb, arg, _ := strings.Cut(line, " ")
	verb = strings.ToLower(verb)
	arg = strings.TrimSpace(arg)

	switch verb {
	case "help":
		return Help{}, nil
	case "reset":
		return Reset{}, nil
	case "settings":
		return Settings{}, nil
	case "provider":
		if err := validate.Enum("provider", arg, d.providers, true); err != nil {
			return nil, err
		}
		return SetProvider{Name: strings.ToLower(arg)}, nil
	case "model":
		if err := validate.String("model", arg, 1, 100, true); err != nil {
			return nil, err
		}
		return SetModel{Name: arg}, nil
	case "temperature":
		v, err := validate.Number("temperature", arg, 0, 2, true)
		if err != nil {
			return nil, err
		}
		return SetTemperature{Value: v}, nil
	case "systemprompt":
		if err := validate.String("system prompt", arg, 1, 2000, true); err != nil {
			return nil, err
		}
		return SetSystemPrompt{Prompt: arg}, nil
	case "memory":
		v, err := validate.Int("memory size", arg, 1, 100, true)
		if err != nil {
			return nil, err
		}
		return SetMemory{Size: v}, nil
	case "maxtokens":
		v, err := validate.Int("max tokens", arg, 100, 4000, true)
		if err != nil {
			return nil, err
		}
		return SetMaxTokens{Limit: v}, nil
	case "tts":
		if err := validate.Enum("tts", arg, []string{"on", "off"}, true); err != nil {
			return nil, err
		}
		return SetTTS{Enabled: strings.EqualFold(arg, "on")}, nil
	case "voiceid":
		if err := validate.Enum("voice", arg, d.voices, true); err != nil {
			return nil, err
		}
		return SetVoice{ID: strings.ToLower(arg)}, nil
	case "save":
		return SaveDefaults{}, nil
	case "status":
		return Status{}, nil
	default:
		return Unknown{Verb: verb}, nil
	}
}

// Dispatch parses and executes one command line. The returned text is
// always user-facing. Mutations are persisted before returning; a
// validation failure mutates nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, line string) string {
	cmd, err := d.Parse(line)
	if err != nil {
		return "Invalid command: " + err.Error()
	}

	switch c := cmd.(type) {
	case Help:
		return helpText
	case Reset:
		sess.History = []session.Message{}
		d.store.Save(ctx, sess)
		return "Conversation history cleared."
	case Settings:
		return settingsText(sess)
	case SetProvider:
		sess.Params.Provider = c.Name
		d.store.Save(ctx, sess)
		return fmt.Sprintf("Provider set to %s.", c.Name)
	case SetModel:
		sess.Params.Model = c.Name
		d.store.Save(ctx, sess)
		return fmt.Sprintf("Model set to %s.", c.Name)
	case SetTemperature:
		sess.Params.Temperature = c.Value
		d.store.Save(ctx, sess)
		return fmt.Sprintf("Temperature set to %g.", c.Value)
	case SetSystemPrompt:
		sess.Params.SystemPrompt = c.Prompt
		d.store.Save(ctx, sess)
		return "System prompt updated."
	case SetMemory:
		sess.Params.MemorySize = c.Size
		sess.TrimHistory()
		d.store.Save(ctx, sess)
		return fmt.Sprintf("Memory size set to %d exchanges.", c.Size)
	case SetMaxTokens:
		sess.Params.MaxTokens = c.Limit
		d.store.Save(ctx, sess)
		return fmt.Sprintf("Max tokens set to %d.", c.Limit)
	case SetTTS:
		sess.Params.SpeechEnabled = c.Enabled
		d.store.Save(ctx, sess)
		if c.Enabled {
			return "Speech synthesis enabled."
		}
		return "Speech synthesis disabled."
	case SetVoice:
		sess.Params.VoiceID = c.ID
		d.store.Save(ctx, sess)
		return fmt.Sprintf("Voice set to %s.", c.ID)
	case SaveDefaults:
		if err := d.store.SaveDefaults(ctx, sess.ID, sess.Params); err != nil {
			return "Could not save your settings, please try again later."
		}
		return "Settings saved as your defaults."
	case Status:
		return statusText(sess)
	case Unknown:
		return fmt.Sprintf("Unknown command /%s. Type /help for a list of commands.", c.Verb)
	default:
		return "Unknown command. Type /help for a list of commands."
	}
}

const helpText = `Available commands:
/help - show this message
/reset - clear conversation history
/settings - show current settings
/provider <name> - switch generation provider
/model <name> - set the model
/temperature <0-2> - set sampling temperature
/systemprompt <text> - set the system prompt
/memory <1-100> - set how many exchanges to remember
/maxtokens <100-4000> - cap the response length
/tts <on|off> - toggle speech synthesis
/voiceid <name> - select the synthesis voice
/save - save current settings as your defaults
/status - show session status`

func settingsText(sess *session.Session) string {
	p := sess.Params
	model := p.Model
	if model == "" {
		model = "(provider default)"
	}
	tts := "off"
	if p.SpeechEnabled {
		tts = "on"
	}
	return fmt.Sprintf(
		"Current settings:\nprovider: %s\nmodel: %s\ntemperature: %g\nsystem prompt: %s\nmemory: %d exchanges\nmax tokens: %d\ntts: %s\nvoice: %s",
		p.Provider, model, p.Temperature, p.SystemPrompt, p.MemorySize, p.MaxTokens, tts, p.VoiceID)
}

func statusText(sess *session.Session) string {
	return fmt.Sprintf(
		"Session %s\nplatform: %s\nstate: %s\nhistory: %d messages\ncreated: %s\nlast activity: %s",
		sess.ID, sess.Platform, sess.State, len(sess.History),
		sess.CreatedAt.Format("2006-01-02 15:04:05"),
		sess.LastActivityAt.Format("2006-01-02 15:04:05"))
}
