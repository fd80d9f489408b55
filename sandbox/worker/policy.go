// Package worker implements the sandbox's worker host: a singleton,
// FIFO-queued, policy-hardened front end onto an embeddable JS runtime
// (spec §4.9).
package worker

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ViolationKind enumerates the blocked-construct categories spec §4.9
// names under "Security policy".
type ViolationKind string

const (
	ViolationEval              ViolationKind = "eval"
	ViolationDynamicCode       ViolationKind = "dynamic_code"
	ViolationStringTimer       ViolationKind = "string_timer"
	ViolationWeakRef           ViolationKind = "weak_ref"
	ViolationFinalizer         ViolationKind = "finalizer"
	ViolationPrepareStackTrace ViolationKind = "prepare_stack_trace"
	ViolationMainModule        ViolationKind = "main_module"
	ViolationModuleLoad        ViolationKind = "module_load"
	ViolationEnvLeak           ViolationKind = "env_leak"
	ViolationNativeAddon       ViolationKind = "native_addon"
)

// Violation records one blocked construct for the audit log.
type Violation struct {
	ExecutionID string
	Kind        ViolationKind
	Detail      string
	At          time.Time
}

// policySchema is the JSON Schema the policy document is validated against
// at worker startup (spec §4.9; mirrors the teacher's decorator parameter
// schema validation in core/types/validation.go).
const policySchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "blockEval": {"type": "boolean"},
    "blockDynamicCode": {"type": "boolean"},
    "blockStringTimers": {"type": "boolean"},
    "blockWeakRefs": {"type": "boolean"},
    "blockFinalizers": {"type": "boolean"},
    "hideEnv": {"type": "boolean"},
    "hideNativeAddons": {"type": "boolean"},
    "guardPrepareStackTrace": {"type": "boolean"},
    "guardMainModule": {"type": "boolean"},
    "guardModuleLoad": {"type": "boolean"},
    "freezeOnViolation": {"type": "boolean"},
    "auditLogSize": {"type": "integer", "minimum": 1, "maximum": 100000}
  },
  "required": ["blockEval", "blockDynamicCode"]
}`

// PolicyDocument is the JSON-decoded shape of a policy before validation.
type PolicyDocument struct {
	BlockEval              bool `json:"blockEval"`
	BlockDynamicCode       bool `json:"blockDynamicCode"`
	BlockStringTimers      bool `json:"blockStringTimers"`
	BlockWeakRefs          bool `json:"blockWeakRefs"`
	BlockFinalizers        bool `json:"blockFinalizers"`
	HideEnv                bool `json:"hideEnv"`
	HideNativeAddons       bool `json:"hideNativeAddons"`
	GuardPrepareStackTrace bool `json:"guardPrepareStackTrace"`
	GuardMainModule        bool `json:"guardMainModule"`
	GuardModuleLoad        bool `json:"guardModuleLoad"`
	FreezeOnViolation      bool `json:"freezeOnViolation"`
	AuditLogSize           int  `json:"auditLogSize"`
}

// DefaultPolicyDocument returns the policy spec §4.9 describes: every
// defense-in-depth control enabled, a 1000-entry audit log.
func DefaultPolicyDocument() PolicyDocument {
	return PolicyDocument{
		BlockEval: true, BlockDynamicCode: true, BlockStringTimers: true,
		BlockWeakRefs: true, BlockFinalizers: true, HideEnv: true,
		HideNativeAddons: true, GuardPrepareStackTrace: true,
		GuardMainModule: true, GuardModuleLoad: true,
		FreezeOnViolation: false, AuditLogSize: 1000,
	}
}

// Policy is a validated PolicyDocument plus the audit log it governs.
// Defense-in-depth is advisory (spec §9): it blocks accidental escape
// vectors via source inspection before handing code to the JS runtime, not
// a real security boundary.
type Policy struct {
	Doc PolicyDocument

	mu        sync.Mutex
	audit     []Violation
	maxAudit  int
	nextExecN uint64
}

// CompilePolicy validates doc (as JSON) against policySchema and returns a
// ready-to-use Policy. Worker startup calls this once (spec §4.9 "applied
// once at worker startup").
func CompilePolicy(docJSON []byte) (*Policy, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("policy-schema.json", strings.NewReader(policySchema)); err != nil {
		return nil, fmt.Errorf("sandbox: compile policy schema: %w", err)
	}
	schema, err := compiler.Compile("policy-schema.json")
	if err != nil {
		return nil, fmt.Errorf("sandbox: compile policy schema: %w", err)
	}

	var raw any
	if err := json.Unmarshal(docJSON, &raw); err != nil {
		return nil, fmt.Errorf("sandbox: policy document is not valid JSON: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("sandbox: policy document failed schema validation: %w", err)
	}

	var doc PolicyDocument
	if err := json.Unmarshal(docJSON, &doc); err != nil {
		return nil, fmt.Errorf("sandbox: decode policy document: %w", err)
	}
	maxAudit := doc.AuditLogSize
	if maxAudit <= 0 {
		maxAudit = 1000
	}
	return &Policy{Doc: doc, maxAudit: maxAudit}, nil
}

// NewExecutionID returns a stable, monotonically increasing id used to tag
// violations produced during one execution (spec §4.9 "stable execution id
// for audit").
func (p *Policy) NewExecutionID() string {
	p.mu.Lock()
	p.nextExecN++
	n := p.nextExecN
	p.mu.Unlock()
	return fmt.Sprintf("exec-%d", n)
}

// Record appends a violation to the bounded audit log, evicting the oldest
// entry once the log reaches its configured size.
func (p *Policy) Record(v Violation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audit = append(p.audit, v)
	if len(p.audit) > p.maxAudit {
		p.audit = p.audit[len(p.audit)-p.maxAudit:]
	}
}

// AuditLog returns a snapshot of recorded violations, oldest first.
func (p *Policy) AuditLog() []Violation {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Violation, len(p.audit))
	copy(out, p.audit)
	return out
}

// blockedConstruct pairs a source-level signature with the violation kind
// it maps to, scanned by Check before any source reaches the JS runtime.
type blockedConstruct struct {
	kind    ViolationKind
	needle  string
	enabled func(PolicyDocument) bool
}

var blockedConstructs = []blockedConstruct{
	{ViolationEval, "eval(", func(d PolicyDocument) bool { return d.BlockEval }},
	{ViolationDynamicCode, "new Function(", func(d PolicyDocument) bool { return d.BlockDynamicCode }},
	{ViolationDynamicCode, "Function.constructor", func(d PolicyDocument) bool { return d.BlockDynamicCode }},
	{ViolationDynamicCode, "vm.Script", func(d PolicyDocument) bool { return d.BlockDynamicCode }},
	{ViolationDynamicCode, "vm.runIn", func(d PolicyDocument) bool { return d.BlockDynamicCode }},
	{ViolationStringTimer, "setTimeout(\"", func(d PolicyDocument) bool { return d.BlockStringTimers }},
	{ViolationStringTimer, "setInterval(\"", func(d PolicyDocument) bool { return d.BlockStringTimers }},
	{ViolationWeakRef, "new WeakRef(", func(d PolicyDocument) bool { return d.BlockWeakRefs }},
	{ViolationFinalizer, "new FinalizationRegistry(", func(d PolicyDocument) bool { return d.BlockFinalizers }},
	{ViolationPrepareStackTrace, "Error.prepareStackTrace =", func(d PolicyDocument) bool { return d.GuardPrepareStackTrace }},
	{ViolationMainModule, "require.main =", func(d PolicyDocument) bool { return d.GuardMainModule }},
	{ViolationModuleLoad, "Module._load", func(d PolicyDocument) bool { return d.GuardModuleLoad }},
	{ViolationEnvLeak, "process.env", func(d PolicyDocument) bool { return d.HideEnv }},
	{ViolationNativeAddon, "process.binding", func(d PolicyDocument) bool { return d.HideNativeAddons }},
	{ViolationNativeAddon, "process.dlopen", func(d PolicyDocument) bool { return d.HideNativeAddons }},
}

// Check scans source for blocked constructs, recording a Violation for
// every match and returning them. It never mutates source: enforcement is
// "block before execution", not runtime instrumentation, since no
// embeddable JS engine is available to hook at the VM level (spec §9
// documents the defense as advisory for exactly this reason).
func (p *Policy) Check(executionID, source string) []Violation {
	var found []Violation
	for _, bc := range blockedConstructs {
		if !bc.enabled(p.Doc) {
			continue
		}
		if strings.Contains(source, bc.needle) {
			v := Violation{ExecutionID: executionID, Kind: bc.kind, Detail: bc.needle, At: time.Now()}
			found = append(found, v)
			p.Record(v)
		}
	}
	return found
}
