package intent

import (
	"github.com/nerrad567/jarvis-core/internal/device"
)

// Pattern tables are stems, not full words: Russian verbs and nouns inflect,
// so "включ" covers включи, включить, включите and so on. A token matches a
// stem exactly, by prefix within a short suffix, or by bounded edit
// distance (see match.go).

// kindStems identifies which device kind the text is about.
var kindStems = map[device.Kind][]string{
	device.KindLight: {
		"свет", "лампа", "лампу", "лампы", "освещение",
		"light", "lights", "lamp", "lamps",
	},
	device.KindTV: {
		"телевизор", "телек", "тв",
		"tv", "television", "telly",
	},
	device.KindVacuum: {
		"пылесос", "робот",
		"vacuum", "hoover", "robot",
	},
}

// statusStems and healthStems mark read-only queries.
var (
	statusStems = []string{"статус", "состояние", "status"}
	healthStems = []string{"health", "доступность"}
)

// actionPattern maps trigger stems to an action for one device kind. Fixed
// params are bound when the pattern wins; patterns binding more parameters
// win score ties.
type actionPattern struct {
	action device.Action
	stems  []string
	params device.Params
}

var actionPatterns = map[device.Kind][]actionPattern{
	device.KindLight: {
		{action: device.ActionOn, stems: []string{"включ", "зажги", "зажечь", "on"}},
		{action: device.ActionOff, stems: []string{"выключ", "выруби", "погаси", "потуши", "off"}},
		{action: device.ActionSetBrightness, stems: []string{"яркость", "ярче", "темнее", "brightness", "dim"}},
	},
	device.KindTV: {
		{action: device.ActionOn, stems: []string{"включ", "on"}},
		{action: device.ActionOff, stems: []string{"выключ", "выруби", "off"}},
		{
			action: device.ActionLaunchApp, stems: []string{"нетфликс", "netflix"},
			params: device.Params{"app": "netflix"},
		},
		{
			action: device.ActionLaunchApp, stems: []string{"ютуб", "ютьюб", "youtube"},
			params: device.Params{"app": "youtube"},
		},
		{
			action: device.ActionSetVolume, stems: []string{"громче", "louder"},
			params: device.Params{"direction": "up"},
		},
		{
			action: device.ActionSetVolume, stems: []string{"тише", "quieter", "quiet"},
			params: device.Params{"direction": "down"},
		},
		// Bare volume words take a direction or level from surrounding
		// tokens ("volume up", "громкость 40").
		{action: device.ActionSetVolume, stems: []string{"громкость", "звук", "volume"}},
	},
	device.KindVacuum: {
		{action: device.ActionStart, stems: []string{"начни", "начать", "уборк", "убер", "убраться", "start", "clean"}},
		{action: device.ActionPause, stems: []string{"пауза", "пауз", "приостанови", "pause"}},
		{action: device.ActionStop, stems: []string{"стоп", "останови", "stop"}},
		{action: device.ActionDock, stems: []string{"база", "базу", "домой", "dock", "home", "charge"}},
		{action: device.ActionLocate, stems: []string{"найди", "найти", "где", "find", "locate"}},
		{action: device.ActionSetFanPower, stems: []string{"мощность", "мощн", "power", "fan"}},
	},
}

// roomStems maps locale stems to canonical room names. The all-rooms tokens
// map to the registry's fan-out token.
var roomStems = map[string]string{
	"прихож":   "hallway",
	"коридор":  "hallway",
	"hallway":  "hallway",
	"hall":     "hallway",
	"кухн":     "kitchen",
	"kitchen":  "kitchen",
	"комнат":   "room",
	"зал":      "room",
	"room":     "room",
	"ванн":     "bathroom",
	"bathroom": "bathroom",
	"туалет":   "toilet",
	"toilet":   "toilet",
	"весь":     device.RoomAll,
	"все":      device.RoomAll,
	"всех":     device.RoomAll,
	"everywhere": device.RoomAll,
	"all":        device.RoomAll,
}

// roomCapableKinds lists kinds whose devices are addressed per room.
var roomCapableKinds = map[device.Kind]bool{
	device.KindLight: true,
}
