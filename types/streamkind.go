// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "fmt"

// StreamKind is the single byte written by a stream's initiator before any
// framing. Kind 0 is the persistent block-announcement stream; the CE kinds
// are single-exchange request/response streams. The set is closed.
type StreamKind uint8

const (
	StreamKindBlockAnnouncement StreamKind = 0

	StreamKindBlockRequest          StreamKind = 128
	StreamKindStateRequest          StreamKind = 129
	StreamKindTicketDistribution    StreamKind = 131
	StreamKindTicketForwarding      StreamKind = 132
	StreamKindWorkPackageSubmission StreamKind = 133
	StreamKindWorkPackageSharing    StreamKind = 134
	StreamKindWorkReportDist        StreamKind = 135
	StreamKindWorkReportRequest     StreamKind = 136
	StreamKindShardDist             StreamKind = 137
	StreamKindAuditShardRequest     StreamKind = 138
	StreamKindSegmentShardRequest   StreamKind = 139
	StreamKindSegmentShardRequestJ  StreamKind = 140
	StreamKindAssuranceDist         StreamKind = 141
	StreamKindPreimageAnnouncement  StreamKind = 142
	StreamKindPreimageRequest       StreamKind = 143
	StreamKindAuditAnnouncement     StreamKind = 144
	StreamKindJudgmentPublication   StreamKind = 145
)

var streamKindNames = map[StreamKind]string{
	StreamKindBlockAnnouncement:     "UP0/block-announcement",
	StreamKindBlockRequest:          "CE128/block-request",
	StreamKindStateRequest:          "CE129/state-request",
	StreamKindTicketDistribution:    "CE131/ticket-distribution",
	StreamKindTicketForwarding:      "CE132/ticket-forwarding",
	StreamKindWorkPackageSubmission: "CE133/work-package-submission",
	StreamKindWorkPackageSharing:    "CE134/work-package-sharing",
	StreamKindWorkReportDist:        "CE135/work-report-distribution",
	StreamKindWorkReportRequest:     "CE136/work-report-request",
	StreamKindShardDist:             "CE137/shard-distribution",
	StreamKindAuditShardRequest:     "CE138/audit-shard-request",
	StreamKindSegmentShardRequest:   "CE139/segment-shard-request",
	StreamKindSegmentShardRequestJ:  "CE140/segment-shard-request-justified",
	StreamKindAssuranceDist:         "CE141/assurance-distribution",
	StreamKindPreimageAnnouncement:  "CE142/preimage-announcement",
	StreamKindPreimageRequest:       "CE143/preimage-request",
	StreamKindAuditAnnouncement:     "CE144/audit-announcement",
	StreamKindJudgmentPublication:   "CE145/judgment-publication",
}

// IsValid returns true iff k is one of the registered stream kinds.
func (k StreamKind) IsValid() bool {
	_, ok := streamKindNames[k]
	return ok
}

// IsPersistent returns true for the UP kinds, which hold one long-lived
// stream per peer rather than one stream per exchange.
func (k StreamKind) IsPersistent() bool {
	return k == StreamKindBlockAnnouncement
}

func (k StreamKind) String() string {
	if name, ok := streamKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown-kind-%d", uint8(k))
}
