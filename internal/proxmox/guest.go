package proxmox

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrUnknownKind   = errors.New("unknown guest kind")
	ErrUnknownAction = errors.New("unknown guest action")
	ErrGuestNotFound = errors.New("guest not found")
)

// GuestKind distinguishes QEMU virtual machines from LXC containers. Its
// value doubles as the API path segment.
type GuestKind string

const (
	KindQemu GuestKind = "qemu"
	KindLXC  GuestKind = "lxc"
)

// ParseGuestKind validates s as a guest kind.
func ParseGuestKind(s string) (GuestKind, error) {
	switch kind := GuestKind(s); kind {
	case KindQemu, KindLXC:
		return kind, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownKind)
	}
}

// Action is a guest lifecycle action. Stop kills the guest immediately,
// shutdown asks the guest OS to power off.
type Action string

const (
	ActionStart    Action = "start"
	ActionStop     Action = "stop"
	ActionReboot   Action = "reboot"
	ActionShutdown Action = "shutdown"
)

// ParseAction validates s as a lifecycle action.
func ParseAction(s string) (Action, error) {
	switch action := Action(s); action {
	case ActionStart, ActionStop, ActionReboot, ActionShutdown:
		return action, nil
	default:
		return "", fmt.Errorf("%q: %w", s, ErrUnknownAction)
	}
}

// Guest statuses reported by the API.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// GuestID is a VMID. Some Proxmox releases serialize container VMIDs as
// JSON strings, so it accepts both forms.
type GuestID int

func (id *GuestID) UnmarshalJSON(data []byte) error {
	n, err := strconv.Atoi(string(bytes.Trim(data, `"`)))
	if err != nil {
		return fmt.Errorf("invalid vmid %s: %w", data, err)
	}
	*id = GuestID(n)
	return nil
}

// Guest is a virtual machine or container as listed on a node.
type Guest struct {
	VMID   GuestID   `json:"vmid"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
	Kind   GuestKind `json:"-"`
}
