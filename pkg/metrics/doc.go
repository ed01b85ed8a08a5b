/*
Package metrics exposes Prometheus collectors and the health endpoint
shared by the carve processes.

Collectors are package-level and registered at init; components update
them directly. Handler serves /metrics, HealthHandler serves a JSON
health summary fed by RegisterComponent/UpdateComponent.
*/
package metrics
