package handler

type PipelineParams struct {
	PipelineID  int64   `param:"pipeline_id" json:"pipeline_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Definition  string  `json:"definition"`
	Schedule    *string `json:"schedule"`
	Branch      *string `json:"branch"`
}

type RunParams struct {
	PipelineID int64  `param:"pipeline_id"`
	RunID      int64  `param:"run_id"`
	Branch     string `param:"branch" json:"branch"`
}

type DecisionParams struct {
	GateID   string `param:"gate_id"`
	Approved *bool  `json:"approved"`
}

type CredentialParams struct {
	CredentialID int64  `param:"credential_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Secret       string `json:"secret"`
}

type TargetParams struct {
	TargetID       int64   `param:"target_id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	Endpoint       string  `json:"endpoint"`
	CredentialName *string `json:"credential_name"`
	ActivateScript string  `json:"activate_script"`
}
