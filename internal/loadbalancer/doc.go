// Package loadbalancer owns the healthy set: the applications currently
// eligible for selection. Promotion, demotion and deregistration flip the
// registry health flag and the set membership inside one critical section,
// so a selection never sees one without the other.
package loadbalancer
