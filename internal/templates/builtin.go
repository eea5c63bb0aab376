package templates

import "github.com/soyeahso/crewbuilder/internal/domain"

// Builtins returns the templates shipped with crewbuilder.
func Builtins() []domain.Template {
	return []domain.Template{
		{
			Name:        "Content Team",
			Description: "SEO research followed by article writing",
			Agents:      []domain.AgentKey{"✍️ Redator Conteúdo", "🔍 Especialista SEO"},
			Tasks: []string{
				"Pesquisar tópicos relevantes para SEO",
				"Escrever artigo otimizado",
			},
			Definitions: []domain.TemplateAgent{
				{
					Key: "✍️ Redator Conteúdo",
					Definition: domain.AgentDefinition{
						Role:      "Redator de Conteúdo",
						Goal:      "Escrever artigos claros e envolventes",
						Backstory: "Jornalista com experiência em marketing digital",
						Emoji:     "✍️",
					},
				},
				{
					Key: "🔍 Especialista SEO",
					Definition: domain.AgentDefinition{
						Role:      "Especialista em SEO",
						Goal:      "Encontrar tópicos e palavras-chave com potencial de busca",
						Backstory: "Consultor de otimização para mecanismos de busca",
						Emoji:     "🔍",
					},
				},
			},
		},
		{
			Name:        "Data Team",
			Description: "Data cleaning followed by predictive modelling",
			Agents:      []domain.AgentKey{"📊 Analista Dados", "📈 Cientista Dados"},
			Tasks: []string{
				"Coletar e limpar dados",
				"Criar modelo preditivo",
			},
			Definitions: []domain.TemplateAgent{
				{
					Key: "📊 Analista Dados",
					Definition: domain.AgentDefinition{
						Role:      "Analista de Dados",
						Goal:      "Coletar, limpar e organizar conjuntos de dados",
						Backstory: "Engenheiro de dados acostumado a pipelines de ETL",
						Emoji:     "📊",
					},
				},
				{
					Key: "📈 Cientista Dados",
					Definition: domain.AgentDefinition{
						Role:      "Cientista de Dados",
						Goal:      "Construir e avaliar modelos preditivos",
						Backstory: "Pesquisador em aprendizado de máquina",
						Emoji:     "📈",
					},
				},
			},
		},
	}
}
