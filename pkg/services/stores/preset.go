package stores

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/liut/medilink/pkg/models/consult"
	"github.com/liut/medilink/pkg/settings"
)

// LoadPreset reads the optional YAML preset file, missing members keep defaults
func LoadPreset() (doc consult.Preset, err error) {
	doc = consult.DefaultPreset()
	if len(settings.Current.PresetFile) > 0 {
		doc, err = ReadPreset(settings.Current.PresetFile)
		if err != nil {
			logger().Infow("load preset fail", "file", settings.Current.PresetFile, "err", err)
			return consult.DefaultPreset(), err
		}
	}
	return
}

// ReadPreset ...
func ReadPreset(name string) (doc consult.Preset, err error) {
	var yf *os.File
	yf, err = os.Open(name)
	if err != nil {
		return
	}
	defer yf.Close()
	err = yaml.NewDecoder(yf).Decode(&doc)
	if err != nil {
		logger().Infow("decode preset fail", "err", err)
		return
	}
	doc = doc.Merge(consult.DefaultPreset())
	return
}
