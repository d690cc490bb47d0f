package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/archive-evacuator/internal/config"
	"github.com/archive-evacuator/internal/database"
	"github.com/archive-evacuator/internal/mastodon"
	"github.com/archive-evacuator/internal/models"
	"github.com/archive-evacuator/internal/normalizer"
	"github.com/archive-evacuator/internal/publisher"
	"github.com/archive-evacuator/internal/report"
	"github.com/archive-evacuator/internal/repository"
	"github.com/archive-evacuator/pkg/logger"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const usage = `Usage: evacuator <command>

Commands:
  import-facebook    import a Facebook export into the ledger
  import-mastodon    import a Mastodon outbox export into the ledger
  push-facebook      publish imported Facebook posts
  push-mastodon      publish imported Mastodon posts
  verify             verify the instance credentials
  delete <id>        delete a remote status
  stats              print per-source migration counters
`

func main() {
	godotenv.Load()

	log := logger.New().With().Str("run_id", uuid.NewString()).Logger()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open ledger")
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run ledger migrations")
	}

	repos := repository.New(db)
	ctx := context.Background()

	switch command {
	case "import-facebook":
		importFacebook(ctx, cfg, repos, log)
	case "import-mastodon":
		importMastodon(ctx, cfg, repos, log)
	case "push-facebook":
		pushFacebook(ctx, cfg, repos, log)
	case "push-mastodon":
		pushMastodon(ctx, cfg, repos, log)
	case "verify":
		verify(ctx, cfg, log)
	case "delete":
		deleteStatus(ctx, cfg, log)
	case "stats":
		if err := report.Print(ctx, os.Stdout, repos, cfg.Mastodon.TextSizeLimit); err != nil {
			log.Fatal().Err(err).Msg("Failed to collect stats")
		}
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func importFacebook(ctx context.Context, cfg *config.Config, repos *repository.Repositories, log zerolog.Logger) {
	if cfg.Sources.FacebookDir == "" {
		log.Fatal().Msg("FB_POSTS_DIR is required")
	}
	n, err := normalizer.NewFacebook(repos.Facebook, cfg.Sources.FacebookDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare Facebook import")
	}
	result, err := n.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Facebook import failed")
	}
	log.Info().Int("posts", result.Posts).Int("media", result.Media).Msg("Facebook import done")
}

func importMastodon(ctx context.Context, cfg *config.Config, repos *repository.Repositories, log zerolog.Logger) {
	if cfg.Sources.MastodonDir == "" {
		log.Fatal().Msg("MST_POSTS_DIR is required")
	}
	n, err := normalizer.NewMastodon(repos.Mastodon, cfg.Sources.MastodonDir, cfg.Mastodon.FilterMentions, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare Mastodon import")
	}
	result, err := n.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Mastodon import failed")
	}
	log.Info().Int("posts", result.Posts).Int("media", result.Media).Msg("Mastodon import done")
}

func pushFacebook(ctx context.Context, cfg *config.Config, repos *repository.Repositories, log zerolog.Logger) {
	if cfg.Sources.FacebookDir == "" {
		log.Fatal().Msg("FB_POSTS_DIR is required")
	}
	client := newClient(cfg, log)
	visibility := models.VisibilityPublic
	if cfg.Mastodon.PushPrivate {
		visibility = models.VisibilityPrivate
	}
	engine := publisher.New(repos.Facebook, client, publisher.FileOpener(cfg.Sources.FacebookDir), publisher.Options{
		TextSizeLimit:     cfg.Mastodon.TextSizeLimit,
		DefaultVisibility: visibility,
		DryRun:            cfg.Mastodon.DryRun,
		Retry:             cfg.Mastodon.Retry,
		DatePrefix:        true,
	}, log)
	ids, err := engine.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Facebook publication failed")
	}
	log.Info().Int("statuses", len(ids)).Msg("Facebook publication done")
}

func pushMastodon(ctx context.Context, cfg *config.Config, repos *repository.Repositories, log zerolog.Logger) {
	client := newClient(cfg, log)
	engine := publisher.New(repos.Mastodon, client, publisher.URLOpener(http.DefaultClient), publisher.Options{
		TextSizeLimit: cfg.Mastodon.TextSizeLimit,
		DryRun:        cfg.Mastodon.DryRun,
		Retry:         cfg.Mastodon.Retry,
		Threaded:      true,
		DateTag:       cfg.Mastodon.DateTag,
	}, log)
	ids, err := engine.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Mastodon publication failed")
	}
	log.Info().Int("statuses", len(ids)).Msg("Mastodon publication done")
}

func verify(ctx context.Context, cfg *config.Config, log zerolog.Logger) {
	client := newClient(cfg, log)
	name, err := client.VerifyCredentials(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Credential verification failed")
	}
	fmt.Printf("Verified application: %s\n", name)
}

func deleteStatus(ctx context.Context, cfg *config.Config, log zerolog.Logger) {
	if len(os.Args) < 3 {
		log.Fatal().Msg("delete requires a status id")
	}
	client := newClient(cfg, log)
	id, err := client.DeleteStatus(ctx, os.Args[2])
	if err != nil {
		log.Fatal().Err(err).Msg("Status deletion failed")
	}
	fmt.Printf("Deleted status: %s\n", id)
}

// newClient prompts for credentials still missing from the environment and
// builds the API client. A dry run never touches the network, so placeholder
// credentials are fine there.
func newClient(cfg *config.Config, log zerolog.Logger) *mastodon.Client {
	if !cfg.Mastodon.DryRun {
		if err := cfg.PromptMissing(os.Stdin, os.Stderr); err != nil {
			log.Fatal().Err(err).Msg("Missing instance credentials")
		}
	}
	return mastodon.NewClient(&cfg.Mastodon, log)
}
