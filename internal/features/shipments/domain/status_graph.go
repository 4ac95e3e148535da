package domain

import "time"

// statusGraph is the allowed-transition adjacency map. Terminal statuses
// (success, returned, cancelled) have no outgoing edges.
var statusGraph = map[Status][]Status{
	StatusCreated:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusInPickup, StatusInTransit, StatusCancelled},
	StatusInPickup:       {StatusInTransit, StatusCancelled},
	StatusInTransit:      {StatusOutForDelivery, StatusInPickup},
	StatusOutForDelivery: {StatusSuccess, StatusReturned, StatusInTransit},
	StatusSuccess:        {},
	StatusReturned:       {},
	StatusCancelled:      {},
}

// subStatusProgressions are the ordered sub-status phases per main status.
// A sub-status is only meaningful for the statuses listed here, and may only
// advance within the list while the main status is unchanged.
var subStatusProgressions = map[Status][]SubStatus{
	StatusInPickup: {
		SubStatusVehicleAssigned,
		SubStatusVehicleArrived,
		SubStatusLoadingStarted,
		SubStatusLoadingCompleted,
	},
	StatusInTransit: {
		SubStatusOnTime,
		SubStatusDelayed,
	},
	StatusOutForDelivery: {
		SubStatusReachedDestination,
		SubStatusUnloadingStarted,
		SubStatusUnloadingCompleted,
	},
}

// IsKnownStatus reports whether the value is a defined shipment status.
func IsKnownStatus(s Status) bool {
	_, ok := statusGraph[s]
	return ok
}

// CanTransition reports whether the status graph contains an edge from → to.
func CanTransition(from, to Status) bool {
	for _, next := range statusGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedNext returns the statuses reachable from the given status.
// The returned slice is a copy and safe to mutate.
func AllowedNext(from Status) []Status {
	next := statusGraph[from]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// SubStatusIndex returns the position of sub within the progression of the
// given status, or ok=false when the pairing is invalid.
func SubStatusIndex(status Status, sub SubStatus) (int, bool) {
	for i, s := range subStatusProgressions[status] {
		if s == sub {
			return i, true
		}
	}
	return -1, false
}

// HasSubStatuses reports whether the status defines a sub-status progression.
func HasSubStatuses(status Status) bool {
	return len(subStatusProgressions[status]) > 0
}

// ApplyTransition mutates the shipment to the new status and sub-status and
// stamps the timestamp field mapped to the transition. Validation is the
// caller's responsibility; this only performs the bookkeeping.
func ApplyTransition(s *Shipment, newStatus Status, newSub SubStatus, at time.Time) {
	s.Status = newStatus
	s.SubStatus = newSub
	stampTransition(s, newStatus, newSub, at)
}

// stampTransition writes the timestamp field for the status/sub-status pair.
// Sub-statuses with a dedicated field stamp that field; the remaining
// sub-statuses and all main statuses stamp the main-status field.
func stampTransition(s *Shipment, status Status, sub SubStatus, at time.Time) {
	switch sub {
	case SubStatusVehicleAssigned:
		s.VehicleAssignedAt = &at
		return
	case SubStatusVehicleArrived:
		s.VehicleArrivedAt = &at
		return
	case SubStatusLoadingStarted:
		s.LoadingStartedAt = &at
		return
	case SubStatusLoadingCompleted:
		s.LoadingCompletedAt = &at
		return
	case SubStatusReachedDestination:
		s.ReachedDestinationAt = &at
		return
	case SubStatusUnloadingStarted:
		s.UnloadingStartedAt = &at
		return
	case SubStatusUnloadingCompleted:
		s.UnloadingCompletedAt = &at
		return
	}

	switch status {
	case StatusConfirmed:
		s.ConfirmedAt = &at
	case StatusInPickup:
		s.PickupStartedAt = &at
	case StatusInTransit:
		s.InTransitAt = &at
	case StatusOutForDelivery:
		s.OutForDeliveryAt = &at
	case StatusSuccess:
		s.DeliveredAt = &at
	case StatusReturned:
		s.ReturnedAt = &at
	case StatusCancelled:
		s.CancelledAt = &at
	}
}
