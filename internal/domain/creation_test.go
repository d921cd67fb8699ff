package domain

import (
	"math"
	"testing"

	"github.com/mithublue/photoframe-generator/internal/compose"
)

func TestCreateCreationRequestValidate(t *testing.T) {
	valid := CreateCreationRequest{
		SourceType: SourceTypeS3Presigned,
		Params:     compose.TransformParams{ProfileScale: 1.5},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	empty := CreateCreationRequest{}
	if err := empty.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingKeys := CreateCreationRequest{SourceType: SourceTypeLocalFile}
	if err := missingKeys.Validate(); err == nil {
		t.Fatal("expected validation error for local_file without source keys")
	}

	unsupported := CreateCreationRequest{SourceType: "http_url"}
	if err := unsupported.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported source_type")
	}
}

func TestValidateParams(t *testing.T) {
	if err := ValidateParams(compose.TransformParams{}); err != nil {
		t.Fatalf("zero params use defaults, got error: %v", err)
	}

	negative := compose.TransformParams{ProfileScale: -0.5}
	if err := ValidateParams(negative); err == nil {
		t.Fatal("expected error for negative profile scale")
	}

	nan := compose.TransformParams{ProfileRotationDegrees: math.NaN()}
	if err := ValidateParams(nan); err == nil {
		t.Fatal("expected error for NaN rotation")
	}

	inf := compose.TransformParams{FrameScale: math.Inf(1)}
	if err := ValidateParams(inf); err == nil {
		t.Fatal("expected error for infinite frame scale")
	}
}
