package main

import (
	"bufio"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"soundloom/internal/builder"
	"soundloom/internal/loader"
	"soundloom/internal/playback"
	"soundloom/internal/tibetan"
	"soundloom/internal/trainer"
)

// displayName shows ASCII group names in Tibetan script alongside the
// original. Names already in Tibetan pass through unchanged.
func displayName(name string) string {
	converted := tibetan.FromWylie(name)
	if converted == name || converted == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, converted)
}

func newQuizCommand(ctx *commandContext) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Run an interactive listening quiz against published sprites",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			groups, _, err := ctx.loadGroups()
			if err != nil {
				return err
			}
			if baseURL == "" {
				baseURL = cfg.Runtime.BaseURL
			}

			audit, err := builder.Audit(cfg, groups, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sprites, err := loader.New(loader.Options{
				BaseURL:      baseURL,
				FetchTimeout: time.Duration(cfg.Runtime.FetchTimeoutSeconds) * time.Second,
				OnProgress: func(p loader.Progress) {
					fmt.Fprintf(out, "Loading sprites... %d%%\n", p.Percent())
				},
				Logger: logger,
			})
			if err != nil {
				return err
			}
			runCtx := cmd.Context()
			master, err := sprites.Initialize(runCtx)
			if err != nil {
				return err
			}
			speakers := master.Speakers()
			if progress := sprites.LoadAllWordTiers(runCtx, speakers); progress.Failed > 0 {
				fmt.Fprintf(out, "%d of %d speakers failed to load and will be unavailable\n",
					progress.Failed, progress.Total)
			}
			sprites.LoadLongTiersInBackground(runCtx, speakers)

			rows := trainer.BuildGroups(master, audit.Groups, trainer.BuildOptions{
				SkipUnverified: cfg.Runtime.SkipUnverified,
			})
			engine := playback.NewEngine(sprites, playback.NewOtoSink(), nil, logger)

			return runQuiz(cmd, rows, engine)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Manifest base URL (defaults to the configured runtime.base_url)")
	return cmd
}

// runQuiz loops rounds until the input closes or the user quits: pick a row,
// play a random variant of a random target, read the guess, score it.
func runQuiz(cmd *cobra.Command, rows []*trainer.SoundGroup, player trainer.Player) error {
	playable := make([]*trainer.SoundGroup, 0, len(rows))
	for _, row := range rows {
		for _, group := range row.VersionGroups {
			if group.Len() > 0 {
				playable = append(playable, row)
				break
			}
		}
	}
	if len(playable) == 0 {
		return fmt.Errorf("quiz: no playable sound groups (run build and audit first)")
	}

	out := cmd.OutOrStdout()
	input := bufio.NewScanner(cmd.InOrStdin())
	correct, asked := 0, 0

	fmt.Fprintln(out, "Listen, then answer with the option number. r replays, q quits.")
	playbackFailures := 0
	for {
		row := playable[rand.IntN(len(playable))]
		target, err := row.SetRandomTarget()
		if err != nil {
			continue
		}

		handle, err := row.PlayTarget(player)
		if err != nil {
			fmt.Fprintf(out, "Playback failed for %s: %v\n", row.Name, err)
			row.Reset()
			playbackFailures++
			if playbackFailures >= 5 {
				return fmt.Errorf("quiz: %d consecutive playback failures, giving up", playbackFailures)
			}
			continue
		}
		playbackFailures = 0
		select {
		case <-cmd.Context().Done():
			row.Reset()
			return cmd.Context().Err()
		case <-handle.Done():
		}

		fmt.Fprintf(out, "\n%s\n", row.Name)
		for i, group := range row.VersionGroups {
			fmt.Fprintf(out, "  %d) %s\n", i+1, displayName(group.Name))
		}

		answered := false
		for !answered {
			fmt.Fprint(out, "> ")
			if !input.Scan() {
				row.Reset()
				fmt.Fprintf(out, "\nScore: %d/%d\n", correct, asked)
				return input.Err()
			}
			switch text := strings.TrimSpace(input.Text()); text {
			case "q":
				row.Reset()
				fmt.Fprintf(out, "Score: %d/%d\n", correct, asked)
				return nil
			case "r":
				if handle, err = row.PlayTarget(player); err == nil {
					<-handle.Done()
				}
			default:
				choice, err := strconv.Atoi(text)
				if err != nil || choice < 1 || choice > len(row.VersionGroups) {
					fmt.Fprintln(out, "Enter an option number, r, or q")
					continue
				}
				guess := row.VersionGroups[choice-1]
				ok, err := row.CheckAnswer(guess)
				if err != nil {
					return err
				}
				asked++
				if ok {
					correct++
					fmt.Fprintln(out, "Correct")
				} else {
					fmt.Fprintf(out, "Incorrect, that was %q\n", displayName(target.Name))
				}
				answered = true
			}
		}
	}
}
