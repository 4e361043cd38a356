package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/importer"
	pgstore "live-quiz-service/internal/infra/postgres"
)

// NewImportCmd stores a question file in Postgres so `start -q pg:<id>` can
// load it.
func NewImportCmd(root *rootOptions) *cobra.Command {
	var (
		id       string
		title    string
		imageDir string
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate a question file and store it in Postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if imageDir == "" {
				imageDir = cfg.Quiz.ImageDir
			}
			if id == "" {
				id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			if title == "" {
				title = id
			}

			questions, err := importer.New(importer.FileImageLoader{Dir: imageDir}).Load(path)
			if err != nil {
				return err
			}

			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := pgstore.NewStore(db).Save(ctx, title, domain.NewQuestionSet(id, questions)); err != nil {
				return err
			}
			slog.InfoContext(ctx, "import: question set stored", "id", id, "questions", len(questions))
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", postgresRef, id)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&id, "id", "", "question set id, defaults to the file name (env: QUIZ_ID)")
	fs.StringVar(&title, "title", "", "question set title, defaults to the id (env: QUIZ_TITLE)")
	fs.StringVar(&imageDir, "image-dir", "", "directory image links resolve against (env: QUIZ_IMAGE_DIR)")
	return cmd
}
