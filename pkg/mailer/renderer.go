package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*
var templateFS embed.FS

// Render executes the named template set (name_subject.txt, name.html, name.txt) with data.
func Render(name, to string, data any) (Message, error) {
	subject, err := renderText(name+"_subject.txt", data)
	if err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	html, err := renderHTML(name+".html", data)
	if err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	text, err := renderText(name+".txt", data)
	if err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	return Message{To: to, Subject: strings.TrimSpace(subject), HTML: html, Text: text}, nil
}

func renderText(file string, data any) (string, error) {
	raw, err := templateFS.ReadFile("templates/" + file)
	if err != nil {
		return "", err
	}
	t, err := texttemplate.New(file).Parse(string(raw))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHTML(file string, data any) (string, error) {
	raw, err := templateFS.ReadFile("templates/" + file)
	if err != nil {
		return "", err
	}
	t, err := htmltemplate.New(file).Parse(string(raw))
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
