package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// UIController mutates the live interface state on behalf of the model.
type UIController interface {
	SetTheme(value string) error
	SetFont(value string) error
	SetBackground(value string) error
	RequestLogin() error
}

// URLOpener opens a URL in a new browser context.
type URLOpener interface {
	Open(url string) error
}

// ValidThemes, ValidFonts and ValidBackgrounds enumerate the values the
// computerControl tool accepts. Anything else is rejected with a result the
// model can relay to the user.
var (
	ValidThemes = []string{"light", "dark"}
	ValidFonts = []string{
		"sans", "serif", "mono", "lora", "fira-code", "poppins", "montserrat",
		"playfair", "jetbrains-mono", "nunito", "merriweather", "inconsolata",
		"lato", "oswald", "roboto-mono",
	}
	ValidBackgrounds = []string{
		"universum", "neural", "cosmic", "plain", "geometric", "starfield",
		"gradient-wave", "hexagon", "bubbles", "noise", "topo", "blueprint",
		"aurora", "circuit", "wavy-grid", "polka-dots", "digital-rain",
		"tetris-fall",
	}
)

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// ControlResult is the function response of computerControl and openWebsite.
type ControlResult struct {
	Result string `json:"result"`
}

type controlInput struct {
	Setting string `json:"setting" jsonschema:"enum=changeTheme,enum=changeFont,enum=changeBackground,enum=login,description=The setting to change or action to trigger."`
	Value   string `json:"value,omitempty" jsonschema:"description=The value for the setting. Not required for login."`
}

// NewControlTool declares the computerControl tool backed by the given
// controller. Invalid settings or values are reported in the result rather
// than failing the turn.
func NewControlTool(ui UIController) Definition {
	return Definition{
		Name:        "computerControl",
		Description: "Change settings on the user's computer interface, like the visual theme, font, or background style, or to trigger actions like logging in.",
		Parameters:  reflectSchema(controlInput{}),
		Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
			var in controlInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			result := "Unknown setting or value."
			switch in.Setting {
			case "changeTheme":
				if contains(ValidThemes, in.Value) {
					if err := ui.SetTheme(in.Value); err != nil {
						return nil, err
					}
					result = fmt.Sprintf("Theme successfully changed to %s.", in.Value)
				}
			case "changeFont":
				if contains(ValidFonts, in.Value) {
					if err := ui.SetFont(in.Value); err != nil {
						return nil, err
					}
					result = fmt.Sprintf("Font successfully changed to %s.", in.Value)
				}
			case "changeBackground":
				if contains(ValidBackgrounds, in.Value) {
					if err := ui.SetBackground(in.Value); err != nil {
						return nil, err
					}
					result = fmt.Sprintf("Background successfully changed to %s.", in.Value)
				}
			case "login":
				if err := ui.RequestLogin(); err != nil {
					return nil, err
				}
				result = "Login screen opened for user."
			}
			return &ControlResult{Result: result}, nil
		},
	}
}

type openWebsiteInput struct {
	URL string `json:"url" jsonschema:"description=The full URL of the website to open\\, including http:// or https://"`
}

// NewOpenWebsiteTool declares the openWebsite tool. Only http(s) URLs are
// opened; anything else is reported back as invalid.
func NewOpenWebsiteTool(opener URLOpener) Definition {
	return Definition{
		Name:        "openWebsite",
		Description: "Opens a given URL in a new browser tab.",
		Parameters:  reflectSchema(openWebsiteInput{}),
		Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
			var in openWebsiteInput
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}

			if in.URL == "" || !(strings.HasPrefix(in.URL, "http://") || strings.HasPrefix(in.URL, "https://")) {
				return &ControlResult{Result: fmt.Sprintf("Invalid or insecure URL provided: %s.", in.URL)}, nil
			}
			if err := opener.Open(in.URL); err != nil {
				return nil, err
			}
			return &ControlResult{Result: fmt.Sprintf("Successfully opened %s.", in.URL)}, nil
		},
	}
}
