// Package importer reads question files written by hosts.
//
// A question file is a YAML list of rows shaped like the columns of the
// classic quiz spreadsheet:
//
//   - question: What is 2 + 2?
//     option_1: "3"
//     option_2: "4"
//     option_3: "5"
//     option_4: "6"
//     correct_answer: 2
//     image_link: math.jpg
//
// The same columns may instead be kept in the first sheet of an .xlsx
// workbook, with the column names in its first row.
//
// A row with all four options and correct_answer in 1..4 is multiple choice.
// A row with only option_1 and no correct_answer is short answer, option_1
// being the expected answer.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"live-quiz-service/internal/domain"
)

// Row is one question as written in a question file.
type Row struct {
	Question      string `yaml:"question"`
	Option1       string `yaml:"option_1"`
	Option2       string `yaml:"option_2,omitempty"`
	Option3       string `yaml:"option_3,omitempty"`
	Option4       string `yaml:"option_4,omitempty"`
	CorrectAnswer *int   `yaml:"correct_answer,omitempty"`
	ImageLink     string `yaml:"image_link,omitempty"`
}

func (r Row) options() [domain.OptionCount]string {
	return [domain.OptionCount]string{
		strings.TrimSpace(r.Option1),
		strings.TrimSpace(r.Option2),
		strings.TrimSpace(r.Option3),
		strings.TrimSpace(r.Option4),
	}
}

// FormatError reports the first invalid row. Row numbers start at 2, as
// they would under a header line in a spreadsheet.
type FormatError struct {
	Row    int
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func (e *FormatError) Unwrap() error { return domain.ErrInvalidQuestion }

// ImageLoader resolves an image reference to an encoded blob.
type ImageLoader interface {
	Load(ref string) (string, bool)
}

type Importer struct {
	images ImageLoader
}

// New returns an importer. images may be nil, in which case image links
// are ignored.
func New(images ImageLoader) *Importer {
	return &Importer{images: images}
}

// Load reads and converts the question file at path.
func (im *Importer) Load(path string) ([]domain.Question, error) {
	rows, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	qs, err := im.Convert(rows)
	if err != nil {
		return nil, fmt.Errorf("importer: %s: %w", path, err)
	}
	return qs, nil
}

// ReadFile reads the rows of the question file at path, as a spreadsheet
// when IsWorkbook(path) and as YAML otherwise.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrQuestionSetNotFound, path)
		}
		return nil, fmt.Errorf("importer: open %s: %w", path, err)
	}
	defer f.Close()

	read := ReadRows
	if IsWorkbook(path) {
		read = ReadWorkbook
	}
	rows, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("importer: %s: %w", path, err)
	}
	return rows, nil
}

// LoadQuestionSet loads the file at ref as a question set identified by ref.
func (im *Importer) LoadQuestionSet(_ context.Context, ref string) (domain.QuestionSet, error) {
	qs, err := im.Load(ref)
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return domain.NewQuestionSet(ref, qs), nil
}

// ReadRows decodes a question file. Unknown keys are rejected.
func ReadRows(r io.Reader) ([]Row, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rows []Row
	if err := dec.Decode(&rows); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// WriteRows encodes rows as a question file.
func WriteRows(w io.Writer, rows []Row) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Convert validates every row, then builds the questions. Nothing is
// returned unless all rows are valid.
func (im *Importer) Convert(rows []Row) ([]domain.Question, error) {
	kinds := make([]domain.QuestionKind, len(rows))
	for i, row := range rows {
		kind, err := classify(row)
		if err != nil {
			return nil, &FormatError{Row: i + 2, Reason: err.Error()}
		}
		kinds[i] = kind
	}

	out := make([]domain.Question, 0, len(rows))
	for i, row := range rows {
		image := im.loadImage(row.ImageLink)

		var (
			q   domain.Question
			err error
		)
		switch kinds[i] {
		case domain.KindMultipleChoice:
			q, err = domain.NewMultipleChoice(strings.TrimSpace(row.Question), row.options(), *row.CorrectAnswer-1, image)
		default:
			q, err = domain.NewShortAnswer(strings.TrimSpace(row.Question), strings.TrimSpace(row.Option1), image)
		}
		if err != nil {
			return nil, &FormatError{Row: i + 2, Reason: err.Error()}
		}
		out = append(out, q)
	}
	return out, nil
}

func classify(row Row) (domain.QuestionKind, error) {
	if strings.TrimSpace(row.Question) == "" {
		return "", errors.New("question text is empty")
	}

	opts := row.options()
	filled := 0
	for _, o := range opts {
		if o != "" {
			filled++
		}
	}

	switch {
	case opts[0] != "" && filled == 1 && row.CorrectAnswer == nil:
		return domain.KindShortAnswer, nil
	case filled == domain.OptionCount && row.CorrectAnswer != nil:
		if c := *row.CorrectAnswer; c < 1 || c > domain.OptionCount {
			return "", fmt.Errorf("correct_answer must be between 1 and %d, found %d", domain.OptionCount, c)
		}
		return domain.KindMultipleChoice, nil
	}
	return "", errors.New("for short answer fill only option_1 and leave correct_answer empty; " +
		"for multiple choice fill all options and correct_answer")
}

func (im *Importer) loadImage(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || im.images == nil {
		return ""
	}
	blob, _ := im.images.Load(ref)
	return blob
}
