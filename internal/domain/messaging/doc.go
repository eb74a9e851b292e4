// Package messaging contains the domain model for inbound message ingestion
// and platform integration synchronization.
//
// It defines the ChannelIntegration port implemented by platform adapters in
// the infrastructure layer, the IntegrationConnection aggregate tracking a
// tenant's connection to one platform, and the collaborator ports (message
// store, analyzer, seller lookup) the webhook orchestrator depends on.
package messaging
