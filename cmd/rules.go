package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ketwaroo/appscreener/internal/logger"
	"github.com/ketwaroo/appscreener/internal/rules"
	"github.com/ketwaroo/appscreener/internal/rulestore"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage the eligibility rule set",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the rule set in force",
	Run: func(_ *cobra.Command, _ []string) {
		_, store := openStore()
		printJSON(store.Snapshot())
	},
}

var rulesGetCmd = &cobra.Command{
	Use:   "get <index>",
	Short: "Print one rule by index",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		zlog, store := openStore()
		rule, err := store.Get(parseIndex(zlog, args[0]))
		if err != nil {
			zlog.Fatal("getting rule", zap.Error(err))
		}
		printJSON(rule)
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <rule-json|file>",
	Short: "Append a rule to the rule set",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		zlog, store := openStore()
		rule := readRule(zlog, args[0])
		if err := store.Append(rule); err != nil {
			zlog.Fatal("adding rule", zap.Error(err))
		}
		zlog.Info("rule added", zap.Int("index", store.Len()-1))
	},
}

var rulesUpdateCmd = &cobra.Command{
	Use:   "update <index> <rule-json|file>",
	Short: "Replace one rule by index",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		zlog, store := openStore()
		index := parseIndex(zlog, args[0])
		rule := readRule(zlog, args[1])
		if err := store.Update(index, rule); err != nil {
			zlog.Fatal("updating rule", zap.Error(err))
		}
		zlog.Info("rule updated", zap.Int("index", index))
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <index>",
	Short: "Delete one rule by index",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		zlog, store := openStore()
		index := parseIndex(zlog, args[0])
		if !confirmed(cmd, fmt.Sprintf("Delete rule %d", index)) {
			zlog.Info("canceled")
			return
		}
		if err := store.Delete(index); err != nil {
			zlog.Fatal("deleting rule", zap.Error(err))
		}
		zlog.Info("rule deleted", zap.Int("index", index))
	},
}

var rulesReplaceCmd = &cobra.Command{
	Use:   "replace <file>",
	Short: "Replace the whole rule set from a JSON file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		zlog, store := openStore()
		data, err := os.ReadFile(args[0])
		if err != nil {
			zlog.Fatal("reading rule set file", zap.Error(err))
		}
		set, err := rules.Parse(data)
		if err != nil {
			zlog.Fatal("parsing rule set file", zap.Error(err))
		}
		if !confirmed(cmd, fmt.Sprintf("Replace all %d rules with %d new ones", store.Len(), len(set))) {
			zlog.Info("canceled")
			return
		}
		if err := store.Replace(set); err != nil {
			zlog.Fatal("replacing rule set", zap.Error(err))
		}
		zlog.Info("rule set replaced", zap.Int("rules", len(set)))
	},
}

var rulesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the built-in default rule set",
	Run: func(cmd *cobra.Command, _ []string) {
		zlog, store := openStore()
		if !confirmed(cmd, "Reset the rule set to the built-in defaults") {
			zlog.Info("canceled")
			return
		}
		if err := store.Reset(); err != nil {
			zlog.Fatal("resetting rule set", zap.Error(err))
		}
		zlog.Info("rule set reset to defaults", zap.Int("rules", store.Len()))
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)

	rulesCmd.PersistentFlags().BoolP("yes", "y", false, "do not ask for confirmation on destructive operations")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesGetCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesUpdateCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)
	rulesCmd.AddCommand(rulesReplaceCmd)
	rulesCmd.AddCommand(rulesResetCmd)
}

func openStore() (*zap.Logger, *rulestore.Store) {
	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	store, err := rulestore.Open(viper.GetString("rules-file"), zlog)
	if err != nil {
		zlog.Fatal("opening rule store", zap.Error(err))
	}

	return zlog, store
}

func parseIndex(zlog *zap.Logger, arg string) int {
	index, err := strconv.Atoi(arg)
	if err != nil {
		zlog.Fatal("parsing rule index", zap.String("argument", arg), zap.Error(err))
	}
	return index
}

// readRule accepts either an inline JSON object or a path to a file holding one.
func readRule(zlog *zap.Logger, arg string) rules.Rule {
	data := []byte(arg)
	if !strings.HasPrefix(strings.TrimSpace(arg), "{") {
		fileData, err := os.ReadFile(arg)
		if err != nil {
			zlog.Fatal("reading rule file", zap.Error(err))
		}
		data = fileData
	}

	var rule rules.Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		zlog.Fatal("parsing rule", zap.Error(err))
	}
	return rule
}

func confirmed(cmd *cobra.Command, label string) bool {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true
	}

	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}

func printJSON(v any) {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encoding output: %s", err)
	}
	fmt.Println(string(pretty))
}
