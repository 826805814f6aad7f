package eventbus

import "time"

// Event types published by frameq services.
const (
	// TypeTaskFailed is published when a drained task panics or returns an error.
	TypeTaskFailed = "frametask.task_failed"
	// TypeFrameOverrun is published (development mode only) when a single task
	// alone exceeds the per-frame budget.
	TypeFrameOverrun = "frametask.frame_overrun"
	// TypeQueueDrained is published when a frame leaves the queue empty and the
	// scheduler goes idle.
	TypeQueueDrained = "frametask.queue_drained"

	TypeServiceStarted = "frametask.service_started"
	TypeServiceStopped = "frametask.service_stopped"

	// TypeMetronomeFired is published when a wall-clock trigger enqueues its job
	// onto the frame queue.
	TypeMetronomeFired = "metronome.fired"
)

// TaskFailure describes one isolated task failure.
type TaskFailure struct {
	Target   string `json:"target,omitempty"` // best-effort %T of the receiver
	Callable string `json:"callable,omitempty"`
	Error    string `json:"error"`
}

// FrameOverrun describes a single task that blew the frame budget on its own.
type FrameOverrun struct {
	Callable string        `json:"callable,omitempty"`
	Took     time.Duration `json:"took"`
	Budget   time.Duration `json:"budget"`
}

// MetronomeFire describes one wall-clock trigger firing.
type MetronomeFire struct {
	Job  string `json:"job"`
	Spec string `json:"spec"`
}
