package model

// ConfigTypeEventCodes is the only config type the portal stores.
const ConfigTypeEventCodes = "eventCodes"

// AppConfig is the singleton config record: event id → required check-in code.
// It is overwritten wholesale on every save.
type AppConfig struct {
	ConfigType string            `json:"configType"`
	ConfigData map[string]string `json:"configData"`
	UpdatedAt  int64             `json:"updatedAt,omitempty"`
}

// EventAliases maps legacy event ids used by old frontends to current ids.
var EventAliases = map[string]string{
	"meettheteam": "hellomcg",
}

// DefaultEventCodes seeds a fresh environment.
func DefaultEventCodes() map[string]string {
	return map[string]string{
		"hellomcg":      "hellomcg",
		"careerday":     "careerday",
		"allvoices":     "allvoices",
		"resume_glowup": "resume_glowup",
		"dessert":       "dessert",
		"caseprep":      "caseprep",
	}
}
