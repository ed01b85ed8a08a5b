package store

import "time"

// IdentitySource is a way a user can prove who they are.
type IdentitySource string

const (
	IdentityLocalPassword IdentitySource = "local_password"
	IdentityOIDC          IdentitySource = "oidc"
)

// User is a registered competitor or admin.
type User struct {
	Username        string           `yaml:"username"`
	Email           string           `yaml:"email"`
	Team            string           `yaml:"team,omitempty"`
	Admin           bool             `yaml:"admin,omitempty"`
	IdentitySources []IdentitySource `yaml:"identity_sources,omitempty"`
}

// HasIdentitySource reports whether the user already carries the source.
func (u *User) HasIdentitySource(src IdentitySource) bool {
	for _, s := range u.IdentitySources {
		if s == src {
			return true
		}
	}
	return false
}

// CompetitionStatus is a phase of the competition lifecycle.
type CompetitionStatus string

const (
	StatusUnstarted CompetitionStatus = "Unstarted"
	StatusActive    CompetitionStatus = "Active"
	StatusFinished  CompetitionStatus = "Finished"
)

// CompetitionState is the persisted lifecycle record. Times are unix
// seconds; both are unset while Unstarted, and EndTime stays unset for an
// Active competition without a configured duration.
type CompetitionState struct {
	Status    CompetitionStatus `yaml:"status"`
	StartTime *int64            `yaml:"start_time,omitempty"`
	EndTime   *int64            `yaml:"end_time,omitempty"`
}

// SuccessFraction counts how many of a check's selected boxes passed.
type SuccessFraction struct {
	Passed int `yaml:"passed"`
	Total  int `yaml:"total"`
}

// CheckCurrentState is the per-(team, check) summary overwritten on every
// scheduler tick.
type CheckCurrentState struct {
	Success      bool            `yaml:"success"`
	Failures     int             `yaml:"failures"`
	Messages     []string        `yaml:"message"`
	Fraction     SuccessFraction `yaml:"success_fraction"`
	PassingBoxes []string        `yaml:"passing_boxes,omitempty"`
}

// EmptyCheckState is the canonical record returned before any tick has
// written state for a (team, check) pair.
func EmptyCheckState() CheckCurrentState {
	return CheckCurrentState{
		Success:  false,
		Failures: 0,
		Messages: []string{"Unsolved"},
		Fraction: SuccessFraction{Passed: 0, Total: 0},
	}
}

// BoxCommand is an instruction delivered to a VM supervisor.
type BoxCommand string

const (
	CommandRestore  BoxCommand = "Restore"
	CommandStop     BoxCommand = "Stop"
	CommandSnapshot BoxCommand = "Snapshot"
)

// ToastSeverity classifies a toast notification.
type ToastSeverity string

const (
	SeverityInfo    ToastSeverity = "info"
	SeverityWarning ToastSeverity = "warning"
	SeverityError   ToastSeverity = "error"
)

// Toast is a UI notification. Team and User narrow delivery; when both
// are empty the toast is broadcast to everyone.
type Toast struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Message     string        `json:"message"`
	Severity    ToastSeverity `json:"severity"`
	Team        string        `json:"team,omitempty"`
	User        string        `json:"user,omitempty"`
	SoundEffect string        `json:"sound_effect,omitempty"`
	CreatedAt   int64         `json:"created_at"`
}

// TicketState is the open/closed flag on a support ticket.
type TicketState string

const (
	TicketOpen   TicketState = "Open"
	TicketClosed TicketState = "Closed"
)

// TicketSender identifies which side wrote a ticket message.
type TicketSender string

const (
	SenderTeam  TicketSender = "team"
	SenderAdmin TicketSender = "admin"
)

// TicketMessage is one sanitized entry in a ticket's conversation.
type TicketMessage struct {
	Sender    TicketSender `yaml:"sender"`
	Timestamp int64        `yaml:"timestamp"`
	Text      string       `yaml:"text"`
}

// SupportTicket is a per-team help request with a monotonic numeric id.
type SupportTicket struct {
	ID       int             `yaml:"id"`
	Team     string          `yaml:"team"`
	Subject  string          `yaml:"subject"`
	State    TicketState     `yaml:"state"`
	Messages []TicketMessage `yaml:"messages"`
}

func unixPtr(t time.Time) *int64 {
	v := t.Unix()
	return &v
}
