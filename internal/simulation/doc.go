// Package simulation orchestrates whole runs: it builds the network and
// backend from configuration, drives the cell group epoch by epoch, routes
// harvested spikes back into the network as synaptic events and collects
// the results.
package simulation
