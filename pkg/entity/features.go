package entity

// Feature is a media player capability flag. Values match the bit layout
// automation hosts use for media players.
type Feature uint32

const (
	FeaturePause         Feature = 1
	FeatureVolumeMute    Feature = 8
	FeaturePreviousTrack Feature = 16
	FeatureNextTrack     Feature = 32
	FeatureTurnOn        Feature = 128
	FeatureTurnOff       Feature = 256
	FeatureVolumeStep    Feature = 1024
	FeatureSelectSource  Feature = 2048
	FeatureStop          Feature = 4096
	FeaturePlay          Feature = 16384
)

var featureNames = []struct {
	flag Feature
	name string
}{
	{FeatureTurnOn, "turn_on"},
	{FeatureTurnOff, "turn_off"},
	{FeatureSelectSource, "select_source"},
	{FeatureVolumeMute, "volume_mute"},
	{FeatureVolumeStep, "volume_step"},
	{FeaturePlay, "play"},
	{FeaturePause, "pause"},
	{FeatureStop, "stop"},
	{FeaturePreviousTrack, "previous_track"},
	{FeatureNextTrack, "next_track"},
}

// Has reports whether all bits of x are set.
func (f Feature) Has(x Feature) bool {
	return f&x == x
}

// Names returns the names of the set flags in a stable order.
func (f Feature) Names() []string {
	names := make([]string, 0, len(featureNames))
	for _, fn := range featureNames {
		if f.Has(fn.flag) {
			names = append(names, fn.name)
		}
	}
	return names
}
