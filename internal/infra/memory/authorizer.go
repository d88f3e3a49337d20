package memory

import "context"

// StaticAuthorizer grants privilege to a fixed participant set. An empty set
// means everyone is privileged (single-admin deployments gate at the platform).
type StaticAuthorizer struct {
	admins map[string]struct{}
}

func NewStaticAuthorizer(admins []string) *StaticAuthorizer {
	set := make(map[string]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &StaticAuthorizer{admins: set}
}

func (a *StaticAuthorizer) IsPrivileged(_ context.Context, _ string, participantID string) (bool, error) {
	if len(a.admins) == 0 {
		return true, nil
	}
	_, ok := a.admins[participantID]
	return ok, nil
}
