package gfx

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// Pipeline is a graphics pipeline and its layout. Set 0 of the layout is
// the bindless set when the pipeline was built with UseBindless.
type Pipeline struct {
	Handle     core1_0.Pipeline
	Layout     core1_0.PipelineLayout
	PushStages core1_0.ShaderStageFlags
	PushSize   int
}

// PipelineDesc describes a graphics pipeline with dynamic viewport and
// scissor and no vertex input: vertices are pulled through buffer device
// addresses or generated in the shader.
type PipelineDesc struct {
	Name string
	// VertexShader and FragmentShader are SPIR-V file names in the shader
	// directory. FragmentShader may be empty for depth-only pipelines.
	VertexShader   string
	FragmentShader string

	RenderPass core1_0.RenderPass
	Samples    core1_0.SampleCountFlags
	// ColorAttachments is the number of color attachments of the subpass.
	ColorAttachments int

	CullMode     core1_0.CullModeFlags
	DepthClamp   bool
	DepthTest    bool
	DepthWrite   bool
	DepthCompare core1_0.CompareOp

	UseBindless bool
	PushSize    int
	PushStages  core1_0.ShaderStageFlags
}

// CreateGraphicsPipeline builds the pipeline desc describes.
func (d *Device) CreateGraphicsPipeline(desc PipelineDesc) (*Pipeline, error) {
	vertShader, err := d.loadShaderModule(desc.VertexShader)
	if err != nil {
		return nil, err
	}
	defer d.driver.DestroyShaderModule(vertShader, nil)

	stages := []core1_0.PipelineShaderStageCreateInfo{
		{
			Stage:  core1_0.StageVertex,
			Module: vertShader,
			Name:   "main",
		},
	}

	if desc.FragmentShader != "" {
		fragShader, err := d.loadShaderModule(desc.FragmentShader)
		if err != nil {
			return nil, err
		}
		defer d.driver.DestroyShaderModule(fragShader, nil)

		stages = append(stages, core1_0.PipelineShaderStageCreateInfo{
			Stage:  core1_0.StageFragment,
			Module: fragShader,
			Name:   "main",
		})
	}

	layoutInfo := core1_0.PipelineLayoutCreateInfo{}
	if desc.UseBindless {
		layoutInfo.SetLayouts = []core1_0.DescriptorSetLayout{d.bindless.layout}
	}
	if desc.PushSize > 0 {
		layoutInfo.PushConstantRanges = []core1_0.PushConstantRange{
			{
				StageFlags: desc.PushStages,
				Offset:     0,
				Size:       desc.PushSize,
			},
		}
	}

	layout, _, err := d.driver.CreatePipelineLayout(nil, layoutInfo)
	if err != nil {
		return nil, errors.Wrapf(err, "creating layout for pipeline %q", desc.Name)
	}

	samples := desc.Samples
	if samples == 0 {
		samples = core1_0.Samples1
	}

	var blendAttachments []core1_0.PipelineColorBlendAttachmentState
	for i := 0; i < desc.ColorAttachments; i++ {
		blendAttachments = append(blendAttachments, core1_0.PipelineColorBlendAttachmentState{
			BlendEnabled:   false,
			ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
		})
	}

	pipelines, _, err := d.driver.CreateGraphicsPipelines(nil, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages:           stages,
			VertexInputState: &core1_0.PipelineVertexInputStateCreateInfo{},
			InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
				Topology:               core1_0.PrimitiveTopologyTriangleList,
				PrimitiveRestartEnable: false,
			},
			// Viewport and scissor are dynamic, only the counts matter.
			ViewportState: &core1_0.PipelineViewportStateCreateInfo{
				Viewports: []core1_0.Viewport{{}},
				Scissors:  []core1_0.Rect2D{{}},
			},
			RasterizationState: &core1_0.PipelineRasterizationStateCreateInfo{
				DepthClampEnable:        desc.DepthClamp,
				RasterizerDiscardEnable: false,
				PolygonMode:             core1_0.PolygonModeFill,
				CullMode:                desc.CullMode,
				FrontFace:               core1_0.FrontFaceCounterClockwise,
				DepthBiasEnable:         false,
				LineWidth:               1.0,
			},
			MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
				SampleShadingEnable:  false,
				RasterizationSamples: samples,
				MinSampleShading:     1.0,
			},
			DepthStencilState: &core1_0.PipelineDepthStencilStateCreateInfo{
				DepthTestEnable:  desc.DepthTest,
				DepthWriteEnable: desc.DepthWrite,
				DepthCompareOp:   desc.DepthCompare,
			},
			ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
				LogicOpEnabled: false,
				LogicOp:        core1_0.LogicOpCopy,
				BlendConstants: [4]float32{0, 0, 0, 0},
				Attachments:    blendAttachments,
			},
			DynamicState: &core1_0.PipelineDynamicStateCreateInfo{
				DynamicStates: []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor},
			},
			Layout:            layout,
			RenderPass:        desc.RenderPass,
			Subpass:           0,
			BasePipelineIndex: -1,
		},
	)
	if err != nil {
		d.driver.DestroyPipelineLayout(layout, nil)
		return nil, errors.Wrapf(err, "creating pipeline %q", desc.Name)
	}

	return &Pipeline{
		Handle:     pipelines[0],
		Layout:     layout,
		PushStages: desc.PushStages,
		PushSize:   desc.PushSize,
	}, nil
}

func (d *Device) DestroyPipeline(p *Pipeline) {
	if p == nil {
		return
	}
	if p.Handle.Initialized() {
		d.driver.DestroyPipeline(p.Handle, nil)
	}
	if p.Layout.Initialized() {
		d.driver.DestroyPipelineLayout(p.Layout, nil)
	}
	*p = Pipeline{}
}
