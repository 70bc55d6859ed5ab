package gensvc

import (
	"context"
	"regexp"
	"strings"

	"github.com/trezcool/chuo/core/content"
)

var quotedTitle = regexp.MustCompile(`"([^"]+)"`)

// templateGenerator writes a fixed text around the quoted title of the prompt. Used in debug mode.
type templateGenerator struct{}

var _ content.Generator = templateGenerator{}

func NewTemplateGenerator() content.Generator {
	return templateGenerator{}
}

func (templateGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	subject := "this programme"
	if m := quotedTitle.FindStringSubmatch(prompt); m != nil {
		subject = m[1]
	}
	return strings.Join([]string{
		subject + " gives students a solid grounding in the core ideas of the field.",
		"Through lectures, practical work and independent study, students build the skills employers and",
		"further study expect, and graduate ready to put them to use.",
	}, " "), nil
}
