package narration

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"stilllift/pkg/assets"
)

// MaxSlugLen bounds slug-derived file names.
const MaxSlugLen = 120

// file name templates inside a mood-context folder, canonical first
var structuredTemplates = []string{
	"Mood_%[1]s_Content_%[2]s_Audio_%[3]s",
	"Audio_%[3]s",
	"audio_%[3]s",
	"%[3]s",
}

// Candidates lists the asset paths tried for a narration, most specific
// first: mood/context folder, homepage track, then the text slug.
func Candidates(title, message string, opts Options) []string {
	var out []string

	if opts.structured() {
		index := max(opts.AudioIndex, 1)
		out = append(out, structuredCandidates(opts, index)...)
		if !opts.PreferExactIndex && index != 1 {
			out = append(out, structuredCandidates(opts, 1)...)
		}
	} else if opts.IsHomepage {
		out = append(out, assets.HomepagePath)
	}

	if slug := Slug(title, message); slug != "" {
		for _, ext := range assets.Extensions {
			out = append(out, assets.BaseDir+slug+"."+ext)
		}
	}

	return lo.Uniq(out)
}

func structuredCandidates(opts Options, index int) []string {
	folder := fmt.Sprintf("%s%s-%s/", assets.BaseDir, opts.Mood, opts.Context)
	variants := []string{fmt.Sprintf("%02d", index), fmt.Sprintf("%d", index)}

	var out []string
	for _, v := range variants {
		for _, ext := range assets.Extensions {
			for _, tmpl := range structuredTemplates {
				name := fmt.Sprintf(tmpl, opts.Mood.Display(), opts.Context.Display(), v)
				out = append(out, folder+name+"."+ext)
			}
		}
	}
	return out
}

// Slug builds a file-system-safe name from title and message: lower case,
// runs of anything but a-z and 0-9 collapsed to one hyphen, no leading or
// trailing hyphen, then cut to MaxSlugLen bytes. The cut is not re-trimmed.
func Slug(title, message string) string {
	src := message
	if title != "" {
		src = title + " " + message
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(src) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLen {
		slug = slug[:MaxSlugLen]
	}
	return slug
}
