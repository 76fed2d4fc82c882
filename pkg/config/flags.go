package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "api.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of registry keys to Flag structs.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag, and
// BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen         = "api-listen"
	FlagBlocksProvider    = "blocks-provider"
	FlagSQLite            = "sqlite"
	FlagTwinsProvider     = "twins-provider"
	FlagLLMTarget         = "llm-target"
	FlagWindowMaxTokens   = "window-max-tokens"
	FlagStageFrequency    = "stage-frequency"
	FlagRetrievalProvider = "retrieval-provider"
	FlagRetrievalTarget   = "retrieval-target"
	FlagEventsProvider    = "events-provider"
)

// ServeFlags is the flag registry for the serve command.
var ServeFlags = FlagSet{
	FlagAPIListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "address for the API server to listen on",
	},
	FlagBlocksProvider: {
		Name:        "blocks-provider",
		ViperKey:    "blocks.provider",
		Description: "block store backend (inmemory, sqlite, postgres, dynamo)",
	},
	FlagSQLite: {
		Name:        "sqlite",
		ViperKey:    "blocks.sqlite_path",
		Description: "path to the sqlite block database",
	},
	FlagTwinsProvider: {
		Name:        "twins-provider",
		ViperKey:    "twins.provider",
		Description: "twin store backend (static, dynamo)",
	},
	FlagLLMTarget: {
		Name:        "llm-target",
		ViperKey:    "llm.target",
		Description: "base URL of the chat completion provider",
	},
	FlagWindowMaxTokens: {
		Name:        "window-max-tokens",
		ViperKey:    "window.max_tokens",
		Description: "flat-mode context window token budget",
	},
	FlagStageFrequency: {
		Name:        "stage-frequency",
		ViperKey:    "stage.identification_frequency",
		Description: "block cadence of staged-mode re-identification",
	},
	FlagRetrievalProvider: {
		Name:        "retrieval-provider",
		ViperKey:    "retrieval.provider",
		Description: "vector retrieval backend (pinecone, qdrant)",
	},
	FlagRetrievalTarget: {
		Name:        "retrieval-target",
		ViperKey:    "retrieval.target",
		Description: "address of the vector retrieval backend",
	},
	FlagEventsProvider: {
		Name:        "events-provider",
		ViperKey:    "events.provider",
		Description: "event stream backend (nop, kafka)",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
