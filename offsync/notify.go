// Copyright 2025 Younes Essl
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app notification record.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier receives user-facing notifications. The orchestrator emits one
// per completed sync run that delivered at least one item.
type Notifier interface {
	Notify(n Notification)
}

// InAppNotifier accumulates notification records for the UI, newest first.
type InAppNotifier struct {
	mu            sync.Mutex
	notifications []Notification
	unread        int
}

// NewInAppNotifier returns an empty notifier.
func NewInAppNotifier() *InAppNotifier {
	return &InAppNotifier{}
}

// Notify prepends the record and bumps the unread counter.
func (n *InAppNotifier) Notify(notification Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append([]Notification{notification}, n.notifications...)
	n.unread++
}

// Notifications returns a copy of the recorded notifications, newest first.
func (n *InAppNotifier) Notifications() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Notification, len(n.notifications))
	copy(out, n.notifications)
	return out
}

// UnreadCount returns the number of unread notifications.
func (n *InAppNotifier) UnreadCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unread
}

// MarkAllRead clears the unread counter.
func (n *InAppNotifier) MarkAllRead() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.notifications {
		n.notifications[i].Read = true
	}
	n.unread = 0
}

func syncCompleteNotification(delivered int) Notification {
	return Notification{
		ID:        "notif-sync-" + uuid.New().String(),
		Type:      "system",
		Title:     "Synchronisation terminée",
		Body:      fmt.Sprintf("%d action(s) synchronisée(s) avec succès", delivered),
		CreatedAt: time.Now().UTC(),
	}
}
