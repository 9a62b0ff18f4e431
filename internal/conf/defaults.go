// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "sampleagent")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "sampleagent.log")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("analysis.acceptedsamplerates", []int{22050, 44100, 48000})

	viper.SetDefault("analysis.backends.enabled", []string{"onset", "autocorr", "aubio", "mlbeat", "spectral"})
	viper.SetDefault("analysis.backends.weights", map[string]float64{
		"onset":    1.0,
		"autocorr": 1.0,
		"aubio":    1.2,
		"mlbeat":   1.5,
		"spectral": 0.8,
	})

	viper.SetDefault("analysis.tempo.plausiblerange.low", 60.0)
	viper.SetDefault("analysis.tempo.plausiblerange.high", 180.0)
	viper.SetDefault("analysis.tempo.outlierthreshold", 10.0)
	viper.SetDefault("analysis.tempo.oneshotmaxduration", 1.0)

	viper.SetDefault("analysis.timeouts.backendms", 5000)
	viper.SetDefault("analysis.timeouts.globalms", 15000)
	viper.SetDefault("analysis.workerpool.size", 4)

	viper.SetDefault("analysis.aubio.binpath", "")
	viper.SetDefault("analysis.mlbeat.runner", "uv")
	viper.SetDefault("analysis.mlbeat.script", "")
	viper.SetDefault("analysis.mlbeat.model", "")

	viper.SetDefault("genre.taxonomy.file", "")
	viper.SetDefault("genre.taxonomy.default", "Uncategorized")
	viper.SetDefault("genre.taxonomy.mapping", defaultTaxonomyMapping())

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "localhost:8090")

	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.log.enabled", true)
	viper.SetDefault("audit.log.path", "log/analysis-audit.log")
	viper.SetDefault("audit.log.maxsizemb", 100)
	viper.SetDefault("audit.log.maxbackups", 5)
	viper.SetDefault("audit.log.maxagedays", 28)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.ttlseconds", 900)
}

// defaultTaxonomyMapping is the built-in keyword table mapping fine-grained
// genre labels to the production taxonomy. Matching is case-insensitive
// substring matching; the first matching rule in insertion-independent
// longest-keyword order wins.
func defaultTaxonomyMapping() map[string]string {
	return map[string]string{
		"hip hop":       "Hip Hop",
		"hip-hop":       "Hip Hop",
		"trap":          "Hip Hop",
		"boom bap":      "Hip Hop",
		"rap":           "Hip Hop",
		"lo-fi":         "Hip Hop",
		"house":         "House",
		"garage":        "House",
		"techno":        "Techno",
		"electro":       "Techno",
		"trance":        "Techno",
		"drum and bass": "Drum & Bass",
		"drum & bass":   "Drum & Bass",
		"dnb":           "Drum & Bass",
		"jungle":        "Drum & Bass",
		"breakbeat":     "Drum & Bass",
		"ambient":       "Ambient",
		"drone":         "Ambient",
		"downtempo":     "Ambient",
		"rock":          "Rock",
		"metal":         "Rock",
		"punk":          "Rock",
		"grunge":        "Rock",
		"jazz":          "Jazz",
		"bebop":         "Jazz",
		"swing":         "Jazz",
		"funk":          "Funk & Soul",
		"soul":          "Funk & Soul",
		"disco":         "Funk & Soul",
		"r&b":           "Funk & Soul",
		"pop":           "Pop",
		"latin":         "World",
		"afro":          "World",
		"reggae":        "World",
		"dub":           "World",
	}
}
