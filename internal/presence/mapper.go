package presence

import "strings"

// Signal is a presence snapshot delivered by the external directory.
// Sequence is kept for display; signals are not reordered by it.
type Signal struct {
	Availability string
	Activity     string
	Sequence     string
	WorkLocation string
	OutOfOffice  bool
}

// normalizeAvailability folds Graph's PascalCase ("BeRightBack") and the
// snake_case vocabulary ("be_right_back") into one comparable form.
func normalizeAvailability(availability string) string {
	a := strings.ToLower(strings.TrimSpace(availability))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(a)
}

// Map translates a directory availability and activity into a Status.
//
//	available                      -> Available
//	busy, do_not_disturb           -> InAMeeting if activity mentions a meeting or call, else Busy
//	away, be_right_back            -> Away
//	offline, unknown, empty        -> OffWork
//	anything else                  -> Available
func Map(availability, activity string) Status {
	switch normalizeAvailability(availability) {
	case "available":
		return Available
	case "busy", "donotdisturb":
		act := strings.ToLower(activity)
		if strings.Contains(act, "meeting") || strings.Contains(act, "call") {
			return InAMeeting
		}
		return Busy
	case "away", "berightback":
		return Away
	case "offline", "unknown", "presenceunknown", "":
		return OffWork
	default:
		return Available
	}
}

// IsOffline reports whether availability means the person is not reachable.
// Used to prefer reachable identities when a name matches several people.
func IsOffline(availability string) bool {
	switch normalizeAvailability(availability) {
	case "", "offline", "unknown", "presenceunknown":
		return true
	}
	return false
}
