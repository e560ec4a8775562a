package mqtt

import "fmt"

// Topic layout for the adaptive lighting system.
//
//	als/motion/{room}          motion sensor state ("on"/"off") per room
//	als/teach/{room}           teaching payloads (brightness, temperature)
//	als/override/{room}        manual override commands
//	als/weather/clouds         cloud coverage percent from the weather bridge
//	als/light/{room}/set       outgoing light commands
//	als/accent/{room}/preset   outgoing accent (WLED) preset commands
//	als/mode                   resolved home mode, retained
//	als/status/#               agent status and teach results
//	als/notify                 notification channel
const (
	TopicMotionAll   = "als/motion/+"
	TopicTeachAll    = "als/teach/+"
	TopicOverrideAll = "als/override/+"
	TopicCloudCover  = "als/weather/clouds"
	TopicMode        = "als/mode"
	TopicNotify      = "als/notify"
	TopicTeachStatus = "als/status/teach"
	TopicHealth      = "als/status/health"
)

// MotionTopic constructs the motion topic for a room
func MotionTopic(room string) string {
	return fmt.Sprintf("als/motion/%s", room)
}

// TeachTopic constructs the teaching topic for a room
func TeachTopic(room string) string {
	return fmt.Sprintf("als/teach/%s", room)
}

// OverrideTopic constructs the manual override topic for a room
func OverrideTopic(room string) string {
	return fmt.Sprintf("als/override/%s", room)
}

// LightSetTopic constructs the outgoing light command topic for a room
func LightSetTopic(room string) string {
	return fmt.Sprintf("als/light/%s/set", room)
}

// AccentPresetTopic constructs the outgoing accent preset topic for a fixture
func AccentPresetTopic(fixture string) string {
	return fmt.Sprintf("als/accent/%s/preset", fixture)
}
