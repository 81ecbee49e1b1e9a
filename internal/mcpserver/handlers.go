package mcpserver

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cbie/core/internal/corestore"
	"github.com/cbie/core/internal/ratelimit"
)

// registerTools registers every Correction Coordinator command
// (spec.md §6) as an MCP tool. Every tool except cancel_delete_profile
// is rate-limited per user_id before its handler body runs.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "analyze",
		Description: "Run a full behavior-profile analysis for a user (no-op if detection is paused)",
	}, s.handleAnalyze)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "delete_observation",
		Description: "Soft-delete one observation and schedule a profile recompute",
	}, s.handleDeleteObservation)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "report_observation",
		Description: "Flag an observation with a reason, without deactivating it or triggering recompute",
	}, s.handleReportObservation)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "hide_cluster",
		Description: "Hide a behavior cluster from standard profile reads",
	}, s.handleHideCluster)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "unhide_cluster",
		Description: "Reveal a previously hidden behavior cluster",
	}, s.handleUnhideCluster)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "pause",
		Description: "Pause behavior detection for a user; existing corrections are still accepted",
	}, s.handlePause)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "resume",
		Description: "Resume behavior detection for a user",
	}, s.handleResume)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "export",
		Description: "Export a user's full observation, cluster, and settings dump",
	}, s.handleExport)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "delete_profile",
		Description: "Schedule a 30-day-grace deletion of a user's profile, observations, and prompts",
	}, s.handleDeleteProfile)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "cancel_delete_profile",
		Description: "Cancel a pending grace-period profile deletion",
	}, s.handleCancelDeleteProfile)

	return nil
}

func (s *Server) handleAnalyze(ctx context.Context, req *sdk.CallToolRequest, args AnalyzeInput) (*sdk.CallToolResult, AnalyzeOutput, error) {
	if err := ratelimit.CheckLimit(s.limits, "analyze", args.UserID); err != nil {
		return nil, AnalyzeOutput{}, err
	}

	profile, err := s.app.Coordinator.AnalyzeNow(ctx, args.UserID)
	if err != nil {
		if err == corestore.ErrPaused {
			return nil, AnalyzeOutput{}, fmt.Errorf("detection is paused for user %s", args.UserID)
		}
		return nil, AnalyzeOutput{}, err
	}

	out := AnalyzeOutput{
		UserID:       profile.UserID,
		ClusterCount: len(profile.BehaviorClusters),
		DurationMs:   profile.AnalysisMetadata.DurationMillis,
		PrimaryCount: profile.AnalysisMetadata.PrimaryCount,
	}
	if profile.Archetype != nil {
		out.Archetype = profile.Archetype.Label
	}
	return nil, out, nil
}

func (s *Server) handleDeleteObservation(ctx context.Context, req *sdk.CallToolRequest, args DeleteObservationInput) (*sdk.CallToolResult, DeleteObservationOutput, error) {
	if err := ratelimit.CheckLimit(s.limits, "delete_observation", args.UserID); err != nil {
		return nil, DeleteObservationOutput{}, err
	}

	if err := s.app.Coordinator.DeleteObservation(ctx, args.UserID, args.ObservationID); err != nil {
		return nil, DeleteObservationOutput{}, err
	}
	if err := s.app.Coordinator.RequestAnalysis(ctx, args.UserID); err != nil && err != corestore.ErrPaused {
		return nil, DeleteObservationOutput{}, err
	}

	return nil, DeleteObservationOutput{Deleted: true, RecomputeScheduled: true}, nil
}

func (s *Server) handleReportObservation(ctx context.Context, req *sdk.CallToolRequest, args ReportObservationInput) (*sdk.CallToolResult, ReportObservationOutput, error) {
	if err := ratelimit.CheckLimit(s.limits, "report_observation", args.UserID); err != nil {
		return nil, ReportObservationOutput{}, err
	}

	if err := s.app.Coordinator.ReportObservation(ctx, args.UserID, args.ObservationID, args.Reason); err != nil {
		return nil, ReportObservationOutput{}, err
	}
	return nil, ReportObservationOutput{Recorded: true}, nil
}

func (s *Server) handleHideCluster(ctx context.Context, req *sdk.CallToolRequest, args ClusterVisibilityInput) (*sdk.CallToolResult, ClusterVisibilityOutput, error) {
	if err := ratelimit.CheckLimit(s.limits, "hide_cluster", args.UserID); err != nil {
		return nil, ClusterVisibilityOutput{}, err
	}
	if err := s.app.Coordinator.HideCluster(ctx, args.UserID, args.ClusterIdentity); err != nil {
		return nil, ClusterVisibilityOutput{}, err
	}
	return nil, ClusterVisibilityOutput{Hidden: true}, nil
}

func (s *Server) handleUnhideCluster(ctx context.Context, req *sdk.CallToolRequest, args ClusterVisibilityInput) (*sdk.CallToolResult, ClusterVisibilityOutput, error) {
	if err := ratelimit.CheckLimit(s.limits, "unhide_cluster", args.UserID); err != nil {
		return nil, ClusterVisibilityOutput{}, err
	}
	if err := s.app.Coordinator.UnhideCluster(ctx, args.UserID, args.ClusterIdentity); err != nil {
		return nil, ClusterVisibilityOutput{}, err
	}
	return nil, ClusterVisibilityOutput{Hidden: false}, nil
}

func (s *Server) handlePause(ctx context.Context, req *sdk.CallToolRequest, args DetectionToggleInput) (*sdk.CallToolResult, DetectionToggleOutput, error) {
	if err := ratelimit.CheckLimit(s.limits, "pause_detection", args.UserID); err != nil {
		return nil, DetectionToggleOutput{}, err
	}
	if err := s.app.Coordinator.PauseDetection(ctx, args.UserID); err != nil {
		return nil, DetectionToggleOutput{}, err
	}
	return nil, DetectionToggleOutput{Paused: true}, nil
}

func (s *Server) handleResume(ctx context.Context, req *sdk.CallToolRequest, args DetectionToggleInput) (*sdk.CallToolResult, DetectionToggleOutput, error) {
	if err := ratelimit.CheckLimit(s.limits, "resume_detection", args.UserID); err != nil {
		return nil, DetectionToggleOutput{}, err
	}
	if err := s.app.Coordinator.ResumeDetection(ctx, args.UserID); err != nil {
		return nil, DetectionToggleOutput{}, err
	}
	return nil, DetectionToggleOutput{Paused: false}, nil
}

func (s *Server) handleExport(ctx context.Context, req *sdk.CallToolRequest, args ExportInput) (*sdk.CallToolResult, ExportOutput, error) {
	if err := ratelimit.CheckLimit(s.limits, "export", args.UserID); err != nil {
		return nil, ExportOutput{}, err
	}

	format := args.Format
	if format == "" {
		format = "json"
	}

	dump, err := s.app.Exporter.Export(ctx, args.UserID)
	if err != nil {
		return nil, ExportOutput{}, err
	}
	payload, err := dump.Render(format)
	if err != nil {
		return nil, ExportOutput{}, err
	}

	return nil, ExportOutput{UserID: args.UserID, Format: format, Payload: string(payload)}, nil
}

func (s *Server) handleDeleteProfile(ctx context.Context, req *sdk.CallToolRequest, args DeleteProfileInput) (*sdk.CallToolResult, DeleteProfileOutput, error) {
	if err := ratelimit.CheckLimit(s.limits, "delete_profile", args.UserID); err != nil {
		return nil, DeleteProfileOutput{}, err
	}

	deletionID, completeAt, err := s.app.Coordinator.RequestProfileDeletion(ctx, args.UserID)
	if err != nil {
		return nil, DeleteProfileOutput{}, err
	}
	return nil, DeleteProfileOutput{DeletionID: deletionID, CompleteAt: completeAt.Format("2006-01-02T15:04:05Z07:00")}, nil
}

func (s *Server) handleCancelDeleteProfile(ctx context.Context, req *sdk.CallToolRequest, args CancelDeleteProfileInput) (*sdk.CallToolResult, CancelDeleteProfileOutput, error) {
	if err := s.app.Coordinator.CancelProfileDeletion(ctx, args.UserID, args.DeletionID); err != nil {
		return nil, CancelDeleteProfileOutput{}, err
	}
	return nil, CancelDeleteProfileOutput{Cancelled: true}, nil
}
