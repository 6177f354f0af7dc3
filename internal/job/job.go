package job

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"lingocast/internal/language"
	"lingocast/internal/services"
	"lingocast/internal/textutil"
)

// SubtitleMode selects how translated subtitles reach the output.
type SubtitleMode string

const (
	// SubtitleBurn renders subtitles into the video frames.
	SubtitleBurn SubtitleMode = "burn"
	// SubtitleSoft muxes a selectable subtitle stream into the container.
	SubtitleSoft SubtitleMode = "soft"
	// SubtitleSidecar copies the video and writes an .srt next to it.
	SubtitleSidecar SubtitleMode = "sidecar"
)

// ParseSubtitleMode converts user input into a SubtitleMode.
func ParseSubtitleMode(raw string) (SubtitleMode, error) {
	switch mode := SubtitleMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case SubtitleBurn, SubtitleSoft, SubtitleSidecar:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown subtitle mode %q (want burn, soft or sidecar)", raw)
	}
}

// OutputOptions controls where and how the rendered artifact is written.
type OutputOptions struct {
	Directory    string       `json:"directory" validate:"required"`
	FileName     string       `json:"file_name,omitempty" validate:"omitempty,excludesall=/\\"`
	SubtitleMode SubtitleMode `json:"subtitle_mode" validate:"required,oneof=burn soft sidecar"`
}

// Job describes one translation request.
type Job struct {
	ID             string        `json:"id" validate:"required"`
	Source         string        `json:"source" validate:"required,url"`
	SourceLanguage string        `json:"source_language,omitempty" validate:"omitempty,language"`
	TargetLanguage string        `json:"target_language" validate:"required,language"`
	Output         OutputOptions `json:"output"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Defaults supplies values Prepare uses for unset fields.
type Defaults struct {
	OutputDirectory string
	SubtitleMode    SubtitleMode
}

// Prepare fills defaults, assigns an ID and validates j. The returned job is
// the one a run should execute.
func Prepare(j Job, defaults Defaults, now time.Time) (Job, error) {
	j.Source = strings.TrimSpace(j.Source)
	j.SourceLanguage = strings.TrimSpace(j.SourceLanguage)
	if strings.EqualFold(j.SourceLanguage, "auto") {
		j.SourceLanguage = ""
	}
	j.TargetLanguage = strings.TrimSpace(j.TargetLanguage)
	if strings.TrimSpace(j.ID) == "" {
		j.ID = uuid.NewString()
	}
	if strings.TrimSpace(j.Output.Directory) == "" {
		j.Output.Directory = defaults.OutputDirectory
	}
	if j.Output.SubtitleMode == "" {
		j.Output.SubtitleMode = defaults.SubtitleMode
	}
	if j.Output.FileName != "" {
		j.Output.FileName = textutil.SanitizeFileName(j.Output.FileName)
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now.UTC()
	}
	if err := Validate(j); err != nil {
		return Job{}, err
	}
	return j, nil
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("language", func(fl validator.FieldLevel) bool {
			return language.Validate(fl.Field().String()) == nil
		})
	})
	return validate
}

// Validate checks struct constraints and reports every failing field in one
// error tagged with services.ErrValidation.
func Validate(j Job) error {
	err := validatorInstance().Struct(j)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return services.Wrap(services.ErrValidation, "job", "validate", "", err)
	}
	return services.Wrap(services.ErrValidation, "job", "validate", formatValidationErrors(verrs), nil)
}

func formatValidationErrors(verrs validator.ValidationErrors) string {
	fields := make([]string, 0, len(verrs))
	for _, e := range verrs {
		name := strings.TrimPrefix(e.Namespace(), "Job.")
		if e.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s failed %s=%s", name, e.Tag(), e.Param()))
			continue
		}
		fields = append(fields, fmt.Sprintf("%s failed %s", name, e.Tag()))
	}
	sort.Strings(fields)
	return "invalid job: " + strings.Join(fields, "; ")
}

// ShortID returns the first eight characters of the ID for log prefixes.
func (j Job) ShortID() string {
	if len(j.ID) > 8 {
		return j.ID[:8]
	}
	return j.ID
}

// OutputFileName returns the requested file name or one derived from title,
// suffixed with the target language ("My Video.es.mp4"). Sidecar subtitles
// use the same stem with an .srt extension.
func (j Job) OutputFileName(title string) string {
	if name := strings.TrimSpace(j.Output.FileName); name != "" {
		if filepath.Ext(name) == "" {
			name += ".mp4"
		}
		return name
	}
	stem := textutil.SanitizeFileName(title)
	if stem == "" {
		stem = textutil.TitleFromSlug(filepath.Base(j.Source), "Untitled")
	}
	target := language.Normalize(j.TargetLanguage)
	if target == "" {
		target = "translated"
	}
	return fmt.Sprintf("%s.%s.mp4", stem, target)
}

// OutputPath joins the output directory with OutputFileName.
func (j Job) OutputPath(title string) string {
	return filepath.Join(j.Output.Directory, j.OutputFileName(title))
}
