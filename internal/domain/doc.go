// Package domain contains the core business entities of the meeting lifecycle
// engine: cards produced from meetings, the meetings themselves, the recurring
// series that link them, and the append-only card activity log. It is
// independent of any storage or delivery mechanism.
package domain
