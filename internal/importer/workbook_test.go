package importer_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/importer"
)

// saveWorkbook writes the given sheet rows, header first, to dir/name.
func saveWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestLoadWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.xlsx")
	saveWorkbook(t, path, [][]interface{}{
		{"correct_answer", "question", "option_1", "option_2", "option_3", "option_4"},
		{2, "What is 2 + 2?", "3", "4", "5", "6"},
		{},
		{nil, "Capital of France?", "Paris"},
	})

	qs, err := importer.New(nil).Load(path)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	require.Equal(t, domain.KindMultipleChoice, qs[0].Kind)
	require.Equal(t, "4", qs[0].CorrectOption())
	require.Equal(t, domain.KindShortAnswer, qs[1].Kind)
	require.Equal(t, "Paris", qs[1].ExpectedAnswer)
}

func TestReadWorkbookErrors(t *testing.T) {
	tests := map[string]struct {
		rows   [][]interface{}
		reason string
	}{
		"missing column": {
			rows: [][]interface{}{
				{"question", "option_1", "option_2", "option_3"},
				{"q", "a", "b", "c"},
			},
			reason: "missing required columns: option_4, correct_answer",
		},
		"correct answer not a number": {
			rows: [][]interface{}{
				{"question", "option_1", "option_2", "option_3", "option_4", "correct_answer"},
				{"q", "a", "b", "c", "d", "second"},
			},
			reason: "row 2",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "quiz.xlsx")
			saveWorkbook(t, path, tt.rows)

			_, err := importer.ReadFile(path)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestWorkbookTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, importer.WriteWorkbook(&buf, importer.Template()))

	rows, err := importer.ReadWorkbook(&buf)
	require.NoError(t, err)
	require.Equal(t, importer.Template(), rows)
}

func TestIsWorkbook(t *testing.T) {
	require.True(t, importer.IsWorkbook("quiz.xlsx"))
	require.True(t, importer.IsWorkbook("QUIZ.XLSX"))
	require.False(t, importer.IsWorkbook("quiz.yaml"))
	require.False(t, importer.IsWorkbook("quiz"))
}
