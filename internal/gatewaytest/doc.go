// Package gatewaytest provides test doubles shared by the gateway and
// transport test suites: a scriptable completion backend and a sender that
// captures everything the gateway emits.
package gatewaytest
