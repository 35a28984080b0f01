package intent

// DefaultTable is the pt-BR sales grammar. Order matters twice: intents are
// evaluated top to bottom, and inside one intent the first matching pattern
// wins. Swap the whole table to localize.
var DefaultTable = []Definition{
	{
		Name: "ready_to_buy",
		Patterns: []string{
			"quero fechar",
			"vamos fechar",
			"manda o contrato",
			"pode mandar o contrato",
			"quero comprar",
			"como faço para comprar",
		},
		FollowUpDelayMinutes: 0,
		Label:                "Quente",
		ScoreDelta:           30,
	},
	{
		Name: "check_with_spouse",
		Patterns: []string{
			"vou ver com minha esposa",
			"vou ver com meu marido",
			"falar com minha esposa",
			"falar com meu marido",
			"conversar com a família",
		},
		FollowUpDelayMinutes: 30,
		Label:                "Aguardando",
		ScoreDelta:           5,
	},
	{
		Name: "not_interested",
		Patterns: []string{
			"não tenho mais interesse",
			"nao tenho mais interesse",
			"não quero mais",
			"nao quero mais",
			"pode cancelar",
		},
		FollowUpDelayMinutes: 0,
		Label:                "Frio",
		ScoreDelta:           -30,
	},
	{
		Name: "wants_human",
		Patterns: []string{
			"falar com atendente",
			"falar com uma pessoa",
			"atendente humano",
			"quero falar com alguém",
			"quero falar com um humano",
		},
		FollowUpDelayMinutes: 0,
		Label:                "Atendimento Humano",
		ScoreDelta:           0,
	},
	{
		Name: "price_question",
		Patterns: []string{
			"quanto custa",
			"qual o preço",
			"qual o valor",
			"quanto fica",
		},
		FollowUpDelayMinutes: 0,
		Label:                "Interessado",
		ScoreDelta:           10,
	},
	{
		Name: "payment_question",
		Patterns: []string{
			"formas de pagamento",
			"aceita pix",
			"aceita cartão",
			"dá para parcelar",
			"parcelar",
		},
		FollowUpDelayMinutes: 0,
		Label:                "Negociando",
		ScoreDelta:           15,
	},
	{
		Name: "objection_price",
		Patterns: []string{
			"tá caro",
			"ta caro",
			"está caro",
			"muito caro",
			"fora do orçamento",
		},
		FollowUpDelayMinutes: 120,
		Label:                "Objeção",
		ScoreDelta:           -5,
	},
	{
		Name: "asked_callback",
		Patterns: []string{
			"me liga",
			"pode me ligar",
			"me ligue",
			"liga para mim",
		},
		FollowUpDelayMinutes: 60,
		Label:                "Retornar",
		ScoreDelta:           10,
	},
	{
		Name: "thinking_about_it",
		Patterns: []string{
			"vou pensar",
			"deixa eu pensar",
			"preciso pensar",
			"vou analisar",
		},
		FollowUpDelayMinutes: 1440,
		Label:                "Aguardando",
		ScoreDelta:           0,
	},
	{
		Name: "greeting",
		Patterns: []string{
			"bom dia",
			"boa tarde",
			"boa noite",
			"olá",
		},
		FollowUpDelayMinutes: 0,
		Label:                "",
		ScoreDelta:           0,
	},
}
