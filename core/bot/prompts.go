package bot

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"
)

//go:embed prompts/*.md
var builtinPrompts embed.FS

var intros = map[string]string{
	"EN": "Please introduce yourself and mention that the conversation is being recorded. " +
		"Then ask for the number and names of the participants. " +
		"If the mentioned number does not match the number of speaker IDs in the transcript or if names are missing, ask again.",
	"DE": "Bitte stelle dich vor und weise darauf hin dass das Gespräch aufgezeichnet wird. " +
		"Frage dann nach Anzahl und Namen der Teilnehmer. " +
		"Wenn die genannte Anzahl nicht mit der Anzahl der Speaker IDs im Transkript übereinstimmt oder Namen fehlen, frage erneut nach.",
}

type promptData struct {
	Name     string
	Language string
}

// Persona renders the persona prompt. path overrides the built-in prompt
// for language; both are templates over the assistant's name.
func Persona(path, language, name string) (string, error) {
	source, err := promptSource(path, "prompts/persona_"+strings.ToUpper(language)+".md")
	if err != nil {
		return "", err
	}

	tmpl, err := template.New("persona").Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse persona prompt: %w", err)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, promptData{Name: name, Language: language}); err != nil {
		return "", fmt.Errorf("failed to render persona prompt: %w", err)
	}
	return out.String(), nil
}

// Intro returns the instructions for the assistant's opening turn.
func Intro(path, language string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read intro prompt: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	intro, ok := intros[strings.ToUpper(language)]
	if !ok {
		return "", fmt.Errorf("no intro prompt for language %q", language)
	}
	return intro, nil
}

func promptSource(path, builtin string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt: %w", err)
		}
		return string(data), nil
	}
	data, err := builtinPrompts.ReadFile(builtin)
	if err != nil {
		return "", fmt.Errorf("no built-in prompt %s: %w", builtin, err)
	}
	return string(data), nil
}
