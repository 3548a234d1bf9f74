package schema

import "gopkg.in/yaml.v3"

// planDocument is the YAML-friendly projection of an AlterationPlan,
// rendered for logging/review ahead of SyncTable applying it.
type planDocument struct {
	Table string            `yaml:"table"`
	Steps []planStepDocument `yaml:"steps"`
}

type planStepDocument struct {
	Kind   string `yaml:"kind"`
	Column string `yaml:"column,omitempty"`
	Index  string `yaml:"index,omitempty"`
	FK     string `yaml:"foreignKey,omitempty"`
	Engine string `yaml:"engine,omitempty"`
	Reason string `yaml:"reason,omitempty"`
}

// Render renders an AlterationPlan as a human-readable YAML document,
// independent of the opaque migration-tracker/backup formats.
func Render(plan *AlterationPlan) (string, error) {
	doc := planDocument{Table: plan.Table}
	for _, step := range plan.Steps {
		sd := planStepDocument{Kind: string(step.Kind), Reason: step.Reason}
		switch step.Kind {
		case StepAddColumn, StepModifyColumn:
			sd.Column = step.Column.Name
		case StepDropColumn:
			sd.Column = step.ColumnName
		case StepAddIndex:
			sd.Index = step.Index.Name
		case StepDropIndex:
			sd.Index = step.IndexName
		case StepAddForeignKey:
			sd.FK = step.ForeignKey.ConstraintName
		case StepDropForeignKey:
			sd.FK = step.FKName
		case StepChangeTableEngine:
			sd.Engine = step.Engine
		}
		doc.Steps = append(doc.Steps, sd)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
