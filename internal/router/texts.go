package router

// 面向用户的固定文本（巴西葡萄牙语）
const (
	textAlertAck = "🚨 Mensagem Recebida! A Equipe do Guardião Escolar está a Caminho."

	textExclusiveChannel = "⚠️ *Canal exclusivo para as Instituições de Ensino cadastradas.*\n" +
		"*Favor entrar em contato com o 190 em caso de emergência.*\n" +
		"*Caso tenha interesse em se cadastrar, envie a mensagem \"CADASTRO\".*"

	textGuidance = "⚠️ *Este canal é exclusivo para comunicação de emergências.*\n\n" +
		"Siga as orientações do menu /ajuda. Se você estiver em uma situação de emergência, " +
		"lembre-se de inserir a palavra-chave correspondente e incluir o máximo de detalhes possível.\n" +
		"📞 Inclua também um número de contato para que possamos falar com você."

	textWelcome = "👋 *Bem-vindo ao Guardião Escolar!*\n\n" +
		"Este Canal é utilizado para comunicação rápida e eficaz em situações de emergência.\n\n" +
		"⚠️ *Quando acionar?*\n" +
		"- *Agressor Ativo*: Atos de violência contínuos e deliberados contra a escola.\n" +
		"- *Homicídio ou Tentativa de Homicídio*: Atos contra a vida.\n" +
		"- *Tomada de Refém*: Manter alguém sob ameaça para alcançar algum objetivo.\n" +
		"- *Ameaça de Explosivos*: Suspeita ou evidência de explosivo no perímetro escolar.\n\n" +
		"📋 *Como enviar uma mensagem de emergência?*\n" +
		"1️⃣ *Inclua uma palavra-chave* na mensagem:\n" +
		"- AGRESSOR\n- HOMICÍDIO\n- REFÉM\n- BOMBA\n- TESTE DE ATIVAÇÃO\n" +
		"2️⃣ *Envie os detalhes do ocorrido*, incluindo:\n" +
		"- Localização exata\n- Número de envolvidos\n- Estado das vítimas\n- Meios utilizados pelo agressor."

	textHelp = "📋 *Como usar o Guardião Escolar:*\n\n" +
		"1️⃣ *Envie uma mensagem contendo a palavra-chave*, seguida dos detalhes do ocorrido.\n" +
		"2️⃣ *Inclua informações importantes*, como:\n" +
		"- Localização exata\n" +
		"- Número de envolvidos\n" +
		"- Estado das vítimas\n" +
		"- Meios utilizados pelo agressor\n\n" +
		"⚠️ *Importante*: Mantenha-se seguro e envie as informações apenas se isso não colocar sua segurança em risco."

	textUnknownCommand  = "⚠️ Comando não reconhecido. Consulte /ajuda."
	textUnauthorized    = "⚠️ Você não tem permissão para executar esta ação."
	textAdminsOnlyUnits = "⚠️ Apenas administradores podem cadastrar novas escolas."
	textAdminsOnlyList  = "⚠️ Apenas administradores podem visualizar a lista de escolas cadastradas."
	textAlreadyHandled  = "⚠️ Usuário já foi processado ou não encontrado."
	textDuplicateUnit   = "⚠️ Esta escola já está cadastrada!"
	textUnitNotFound    = "⚠️ User ID não encontrado."
	textColumnNotFound  = "⚠️ Coluna informada não existe."
	textStoreFailure    = "❌ Não foi possível acessar a planilha no momento. Tente novamente em instantes."
	textGenericFailure  = "❌ Ocorreu um erro ao processar sua solicitação."
	textNoUnits         = "📌 Nenhuma escola cadastrada ainda."
	textInvalidFormat   = "⚠️ Formato inválido! Use:\n`%s`"
)

const (
	usageDecide = "/aprovar <UserID> ou /rejeitar <UserID>"
	usageAdmin  = "/addadmin <UserID> ou /removeadmin <UserID>"
	usageUpdate = "/atualizar <UserID>;<Coluna>;<Novo valor>"
	usageRemove = "/remover <UserID>"
)
