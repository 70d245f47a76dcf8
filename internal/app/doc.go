// Package app holds the karma engine's use cases: parsing and applying karma,
// tracking when users were last seen, greeting on mention, and dispatching
// chat events to those processors. It depends on domain interfaces only.
package app
