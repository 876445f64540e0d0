package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ketwaroo/appscreener/internal/ai"
	"github.com/ketwaroo/appscreener/internal/ai/gemini"
	"github.com/ketwaroo/appscreener/internal/logger"
	"github.com/ketwaroo/appscreener/internal/record"
	"github.com/ketwaroo/appscreener/internal/rulestore"
	"github.com/ketwaroo/appscreener/internal/screening"
	"github.com/ketwaroo/appscreener/internal/secrets"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <application.json>",
	Short: "Evaluate a job-application record against the rule set in force",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		evaluate(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringP("output", "o", "", "write the full result to this file instead of stdout")
	evaluateCmd.Flags().Bool("structured-only", false, "skip the LLM judge and evaluate structured rules only")
}

func evaluate(cmd *cobra.Command, applicationPath string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the appscreener", zap.String("version", version))

	rec, err := record.Load(applicationPath)
	if err != nil {
		logger.Fatal("loading application record", zap.Error(err))
	}

	store, err := rulestore.Open(viper.GetString("rules-file"), logger)
	if err != nil {
		logger.Fatal("opening rule store", zap.Error(err))
	}

	// The evaluation runs on this snapshot even if the store changes later.
	set := store.Snapshot()

	structuredOnly, _ := cmd.Flags().GetBool("structured-only")
	if structuredOnly {
		set = set.Structured()
	}

	judge := prepareJudge(ctx, config, rec, structuredOnly, logger)

	result, err := screening.New(judge, logger).Evaluate(ctx, rec, set)
	if err != nil {
		logger.Fatal("evaluation failed", zap.Error(err))
	}

	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal("encoding result", zap.Error(err))
	}

	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		if err := os.WriteFile(output, append(pretty, '\n'), 0o644); err != nil {
			logger.Fatal("writing result file", zap.Error(err))
		}
		logger.Info("result written", zap.String("path", output))
		return
	}

	fmt.Println(string(pretty))
}

// prepareJudge builds the LLM judge from the configuration; a disabled or
// misconfigured judge yields nil, and unstructured rules then fail closed.
func prepareJudge(ctx context.Context, config *Config, rec record.Record, structuredOnly bool, log *zap.Logger) ai.Judge {
	if structuredOnly {
		return nil
	}

	if config == nil || config.AI == nil || !config.AI.Enabled {
		log.Info("LLM judge is disabled; unstructured rules will fail closed",
			zap.String("hint", "enable it under the ai section of the configuration file or pass --structured-only"),
		)
		return nil
	}

	judge, err := newGeminiJudge(ctx, config.AI, log)
	if err != nil {
		log.Fatal("building LLM judge", zap.Error(err))
	}

	if post, ok := rec.Lookup("post_applied_for"); ok {
		if position, ok := post.(string); ok {
			judge.SetPosition(position)
		}
	}

	return judge
}

func newGeminiJudge(ctx context.Context, cfg *AIConfig, log *zap.Logger) (*gemini.Judge, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required when the ai judge is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	judgeLogger := logger.WithFields(log, logger.JudgeFields("gemini", cfg.Gemini.Model)...)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, judgeLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewJudge(generator, cfg.Gemini.MaxLogLength, judgeLogger), nil
}
