package main

import "easymund/internal/adminapi"

// adminSource adapts a Registry to the admin API's read-only Source
// interface, keeping internal/adminapi decoupled from the engine's types.
type adminSource struct {
	reg *Registry
}

func newAdminSource(reg *Registry) adminapi.Source {
	return &adminSource{reg: reg}
}

func (a *adminSource) Rooms() []adminapi.RoomInfo {
	var out []adminapi.RoomInfo
	for _, id := range a.reg.SnapshotRoomIDs() {
		if info, ok := a.roomInfo(id); ok {
			out = append(out, info)
		}
	}
	return out
}

func (a *adminSource) Room(id string) (adminapi.RoomInfo, bool) {
	return a.roomInfo(id)
}

func (a *adminSource) roomInfo(id string) (adminapi.RoomInfo, bool) {
	snap, ok := a.reg.SnapshotRoom(id)
	if !ok {
		return adminapi.RoomInfo{}, false
	}
	return adminapi.RoomInfo{
		ID:               snap.ID,
		DisplayName:      snap.DisplayName,
		AmbienceID:       snap.AmbienceID,
		ParticipantCount: len(snap.ClientIDs),
		ChatMessages:     len(a.reg.RoomChatHistory(id)),
	}, true
}

func (a *adminSource) Metrics() adminapi.Metrics {
	ids := a.reg.SnapshotRoomIDs()
	totalClients := 0
	for _, id := range ids {
		if snap, ok := a.reg.SnapshotRoom(id); ok {
			totalClients += len(snap.ClientIDs)
		}
	}
	return adminapi.Metrics{
		TotalRooms:    len(ids),
		TotalClients:  totalClients,
		AmbienceBytes: a.reg.AmbienceByteSize(),
	}
}
