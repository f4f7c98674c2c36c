package core

import "dhtcode-go/bus"

func topicConfigHAL() bus.Topic { return bus.T("config", "hal") }
func topicHALState() bus.Topic  { return bus.T("hal", "state") }

// hal/cap/<domain>/<kind>/<name>/...
func capBase(a CapAddr) bus.Topic { return bus.T("hal", "cap", a.Domain, a.Kind, a.Name) }

func capInfo(a CapAddr) bus.Topic   { return capBase(a).Append("info") }
func capStatus(a CapAddr) bus.Topic { return capBase(a).Append("status") }
func capValue(a CapAddr) bus.Topic  { return capBase(a).Append("value") }
func capEvent(a CapAddr, tag string) bus.Topic {
	if tag == "" {
		return capBase(a).Append("event")
	}
	return capBase(a).Append("event", tag)
}

// hal/cap/<domain>/<kind>/<name>/control/<verb>
func capCtrl(a CapAddr, verb string) bus.Topic { return capBase(a).Append("control", verb) }

// hal/cap/+/+/+/control/+
func ctrlWildcard() bus.Topic {
	return bus.T("hal", "cap", "+", "+", "+", "control", "+")
}

// CtrlTopic is the control topic for a capability verb, for callers outside
// the loop (pollers, tools).
func CtrlTopic(a CapAddr, verb string) bus.Topic { return capCtrl(a, verb) }
