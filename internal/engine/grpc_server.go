package engine

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/validation"
	pb "github.com/xela07ax/salesai-autopilot/pkg/api/autonomy/v1"
)

// GovernorGRPCServer отдает проверки губернатора смежным сервисам:
// до постановки действия в очередь они спрашивают «а можно ли вообще».
// Конверты — google.protobuf.Struct, схема описана ниже по методам.
type GovernorGRPCServer struct {
	pb.UnimplementedGovernorServiceServer
	gate     validation.GateChecker
	governor *validation.Governor
	logger   *zap.Logger
}

func NewGovernorGRPCServer(gate validation.GateChecker, governor *validation.Governor, logger *zap.Logger) *GovernorGRPCServer {
	return &GovernorGRPCServer{
		gate:     gate,
		governor: governor,
		logger:   logger.Named("grpc"),
	}
}

// CanExecute — только политический гейт, без конвейера.
// Запрос: {"kind": string}. Ответ: domain.GateDecision как JSON-объект.
func (s *GovernorGRPCServer) CanExecute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireScope(ctx, domain.ScopeAutonomyRead); err != nil {
		return nil, err
	}

	fields := req.AsMap()
	kindStr, _ := fields["kind"].(string)
	kind, err := domain.ParseActionKind(kindStr)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}

	dec := s.gate.CanExecute(ctx, kind)
	return structFromJSON(dec)
}

// Validate — полный цикл проверки кандидата.
// Запрос: domain.ValidationContext как JSON-объект; отсутствующий
// risk_multiplier трактуем как 1.0 (нет данных о риске != вето),
// отсутствующий intent — как "unknown" (его поймает эскалация).
// Ответ: domain.FullValidationResult как JSON-объект.
func (s *GovernorGRPCServer) Validate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := requireScope(ctx, domain.ScopeAutonomyRead); err != nil {
		return nil, err
	}

	fields := req.AsMap()
	kindStr, _ := fields["kind"].(string)
	kind, err := domain.ParseActionKind(kindStr)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "%v", err)
	}

	vc := domain.ValidationContext{
		Kind:           kind,
		RiskMultiplier: 1.0,
		Intent:         domain.IntentUnknown,
	}
	vc.LeadID, _ = fields["lead_id"].(string)
	vc.TraceID, _ = fields["trace_id"].(string)
	if v, ok := fields["confidence"].(float64); ok {
		vc.Confidence = v
	}
	if v, ok := fields["sentiment"].(float64); ok {
		vc.Sentiment = v
	}
	if v, ok := fields["completeness"].(float64); ok {
		vc.Completeness = v
	}
	if v, ok := fields["risk_multiplier"].(float64); ok {
		vc.RiskMultiplier = v
	}
	if v, ok := fields["intent"].(string); ok && v != "" {
		vc.Intent = v
	}

	res := s.governor.RunFull(ctx, vc)
	return structFromJSON(res)
}

// structFromJSON конвертирует доменный тип в Struct через JSON-теги —
// тот же вид на проводе, что и в HTTP-ответах консоли.
func structFromJSON(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "marshal response: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "remap response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build struct: %v", err)
	}
	return out, nil
}
