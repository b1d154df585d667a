// Package stream maintains the single shared push connection to the
// vendor's event channel.
//
// The vendor emits newline-delimited JSON on a long-lived HTTP response:
// keep-alive heartbeats, which only refresh the shared last-heartbeat
// timestamp, and tracker_status updates, which are dispatched to the
// subscriber registered for that tracker ID.
//
// The Supervisor deliberately never reconnects on its own. When the
// connection drops it returns to idle and stays there until the poll
// scheduler or availability monitor asks for a new registration. That
// keeps reconnect pacing in one place and rules out retry storms against
// the vendor.
package stream
